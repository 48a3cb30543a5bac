package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/megpipe/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements RunStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// CreateRun stores the run row and all its outcome records in one
// transaction, preserving record order via the position column.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run, records []model.OutcomeRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID, "records", len(records))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, step, study, started_at, duration_ms, success, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Step, run.Study,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
		run.Success, run.Skipped, run.Failed)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, rec := range records {
		outputsJSON, err := json.Marshal(rec.Outputs)
		if err != nil {
			return fmt.Errorf("marshal outputs: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, position, subject, session, step, status,
			                       error_kind, error_message, outputs, started_at, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, rec.Unit.Subject, rec.Unit.Session, rec.Step, string(rec.Status),
			string(rec.ErrorKind), rec.ErrorMsg, string(outputsJSON),
			rec.StartedAt.UTC().Format(time.RFC3339Nano),
			rec.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert outcome %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetRun fetches one run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, step, study, started_at, duration_ms, success, skipped, failed
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, step, study, started_at, duration_ms, success, skipped, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListOutcomes returns a run's outcome records in enumeration order.
func (s *SQLiteStore) ListOutcomes(ctx context.Context, runID string) ([]model.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, session, step, status, error_kind, error_message, outputs, started_at, duration_ms
		 FROM outcomes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes %s: %w", runID, err)
	}
	defer rows.Close()

	var records []model.OutcomeRecord
	for rows.Next() {
		var rec model.OutcomeRecord
		var status, kind, outputsJSON, startedAt string
		var durationMS int64
		if err := rows.Scan(&rec.Unit.Subject, &rec.Unit.Session, &rec.Step, &status,
			&kind, &rec.ErrorMsg, &outputsJSON, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Status = model.Status(status)
		rec.ErrorKind = model.ErrorKind(kind)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse outcome time: %w", err)
		}
		if err := json.Unmarshal([]byte(outputsJSON), &rec.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var durationMS int64
	if err := row.Scan(&run.ID, &run.Step, &run.Study, &startedAt, &durationMS,
		&run.Success, &run.Skipped, &run.Failed); err != nil {
		return nil, err
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}
