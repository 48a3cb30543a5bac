package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/pkg/model"
)

// Runner executes one step body inside a scoped failure boundary. Every
// error the body raises is caught, classified, and converted into a
// FAILED outcome record; it is never re-raised to the caller. This is
// what lets a 20-subject batch deliver 19 results when one subject's
// data is corrupt.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a runner. A nil logger falls back to slog.Default.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger.With("component", "runner")}
}

// Run invokes the step body for one unit and returns its outcome record.
func (r *Runner) Run(ctx context.Context, step Step, unit model.WorkUnit, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) model.OutcomeRecord {
	start := time.Now()
	rec := model.OutcomeRecord{
		Unit:      unit,
		Step:      step.Name(),
		StartedAt: start,
	}

	outputs, err := r.invoke(ctx, step, inputs, cfg)
	rec.Duration = time.Since(start)

	if err != nil {
		kind := model.Classify(err)
		r.logger.Error("step failed",
			"step", step.Name(),
			"unit", unit.Key(),
			"kind", string(kind),
			"error", err)
		rec.Status = model.StatusFailed
		rec.ErrorKind = kind
		rec.ErrorMsg = err.Error()
		return rec
	}

	r.logger.Info("step succeeded",
		"step", step.Name(),
		"unit", unit.Key(),
		"outputs", len(outputs),
		"duration", rec.Duration)
	rec.Status = model.StatusSuccess
	rec.Outputs = model.SortedRefs(outputs)
	return rec
}

// invoke calls the step body, converting panics into errors so a
// misbehaving body cannot take down the batch.
func (r *Runner) invoke(ctx context.Context, step Step, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (outputs map[string]model.ArtifactRef, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Name(), p)
		}
	}()
	return step.Run(ctx, inputs, cfg)
}
