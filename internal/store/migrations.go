package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all megpipe tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		step        TEXT NOT NULL,
		study       TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		success     INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS outcomes (
		run_id        TEXT NOT NULL REFERENCES runs(id),
		position      INTEGER NOT NULL,
		subject       TEXT NOT NULL,
		session       TEXT NOT NULL DEFAULT '',
		step          TEXT NOT NULL,
		status        TEXT NOT NULL,
		error_kind    TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		outputs       TEXT NOT NULL DEFAULT '[]',
		started_at    TEXT NOT NULL,
		duration_ms   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_step ON runs(step)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
