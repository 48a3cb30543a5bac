// Package store persists batch run history so past runs can be queried
// from the CLI and the status API.
package store

import (
	"context"
	"time"

	"github.com/me/megpipe/pkg/model"
)

// Run is one persisted batch invocation of a step.
type Run struct {
	ID        string        `json:"id"`
	Step      string        `json:"step"`
	Study     string        `json:"study"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Success   int           `json:"success"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
}

// RunStore defines the persistence layer for run history.
type RunStore interface {
	// CreateRun stores a run and its outcome records atomically.
	CreateRun(ctx context.Context, run *Run, records []model.OutcomeRecord) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	// ListOutcomes returns a run's records in enumeration order.
	ListOutcomes(ctx context.Context, runID string) ([]model.OutcomeRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}
