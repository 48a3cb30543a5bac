package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/pkg/model"
)

// Batch orchestrates one step over the study's work units.
type Batch struct {
	builder *config.Builder
	runner  *Runner
	backend Backend
	logger  *slog.Logger

	// hashConfig enables the opt-in config-hash freshness extension:
	// successful runs record a snapshot hash next to their outputs and a
	// later parameter change invalidates the skip decision.
	hashConfig bool
}

// BatchConfig assembles a Batch.
type BatchConfig struct {
	Study      *config.Study
	Backend    Backend // default: Sequential
	Logger     *slog.Logger
	HashConfig bool
}

// NewBatch creates a batch orchestrator for the study.
func NewBatch(cfg BatchConfig) *Batch {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backend := cfg.Backend
	if backend == nil {
		backend = Sequential{}
	}
	return &Batch{
		builder:    config.NewBuilder(cfg.Study),
		runner:     NewRunner(logger),
		backend:    backend,
		logger:     logger.With("component", "batch"),
		hashConfig: cfg.HashConfig,
	}
}

// RunStep executes one step for every (subject, session) unit and returns
// the aggregated summary. Structural errors (empty roster after
// exclusions) abort the batch; per-unit failures are contained by the
// runner and reported in the summary. Records are ordered by unit
// enumeration order.
func (b *Batch) RunStep(ctx context.Context, step Step, subjects, sessions, exclusions []string) (model.RunSummary, error) {
	units, err := EnumerateUnits(subjects, sessions, exclusions)
	if err != nil {
		return model.RunSummary{}, err
	}

	start := time.Now()
	b.logger.Info("batch started", "step", step.Name(), "units", len(units))

	records := b.backend.Dispatch(ctx, units, func(ctx context.Context, unit model.WorkUnit) model.OutcomeRecord {
		return b.runUnit(ctx, step, unit)
	})

	log := model.NewRunLog()
	for _, rec := range records {
		log.Append(rec)
	}

	summary := model.Summarize(step.Name(), log.Records(), start, time.Since(start))
	b.logger.Info("batch finished",
		"step", step.Name(),
		"success", summary.Counts[model.StatusSuccess],
		"skipped", summary.Counts[model.StatusSkipped],
		"failed", summary.Counts[model.StatusFailed],
		"duration", summary.Duration)
	return summary, nil
}

// runUnit walks one unit through the per-unit state machine:
// snapshot -> resolve -> freshness -> skip | run.
func (b *Batch) runUnit(ctx context.Context, step Step, unit model.WorkUnit) model.OutcomeRecord {
	state := model.UnitStateEnumerated

	cfg, err := b.builder.Build(step.Name(), unit)
	if err != nil {
		// A malformed override fails this unit only; the rest of the
		// batch proceeds.
		b.transition(unit, state, model.UnitStateFailed)
		return model.OutcomeRecord{
			Unit:      unit,
			Step:      step.Name(),
			Status:    model.StatusFailed,
			ErrorKind: model.Classify(err),
			ErrorMsg:  err.Error(),
			StartedAt: time.Now(),
		}
	}
	state = b.transition(unit, state, model.UnitStateSnapshotBuilt)

	inputs := step.Inputs(cfg)
	outputs := step.Outputs(cfg)
	state = b.transition(unit, state, model.UnitStateInputsResolved)

	var opts FreshnessOptions
	if b.hashConfig {
		opts.ConfigHash = cfg.Hash()
		opts.StampPath = StampPath(step.Name(), unit, outputs)
	}

	if Decide(inputs, outputs, opts) == Current {
		b.transition(unit, state, model.UnitStateSkipped)
		b.logger.Info("step skipped, outputs current", "step", step.Name(), "unit", unit.Key())
		return model.OutcomeRecord{
			Unit:      unit,
			Step:      step.Name(),
			Status:    model.StatusSkipped,
			Outputs:   model.SortedRefs(outputs),
			StartedAt: time.Now(),
		}
	}

	state = b.transition(unit, state, model.UnitStateRunning)
	rec := b.runner.Run(ctx, step, unit, inputs, cfg)

	if rec.Status == model.StatusSuccess {
		b.transition(unit, state, model.UnitStateSuccess)
		if b.hashConfig && opts.StampPath != "" {
			if err := WriteStamp(opts.StampPath, opts.ConfigHash); err != nil {
				b.logger.Warn("stamp not recorded", "unit", unit.Key(), "error", err)
			}
		}
	} else {
		b.transition(unit, state, model.UnitStateFailed)
	}
	return rec
}

// transition advances the per-unit state machine, logging the hop. An
// invalid hop indicates an orchestrator bug and is logged loudly rather
// than aborting the unit.
func (b *Batch) transition(unit model.WorkUnit, from, to model.UnitState) model.UnitState {
	if !from.CanTransitionTo(to) {
		b.logger.Error("invalid unit state transition", "unit", unit.Key(), "from", from, "to", to)
		return to
	}
	b.logger.Debug("unit state", "unit", unit.Key(), "from", from, "to", to)
	return to
}

// PlanEntry is one row of a dry-run plan.
type PlanEntry struct {
	Unit    model.WorkUnit
	Verdict Verdict
	Inputs  []model.ArtifactRef
	Outputs []model.ArtifactRef
}

// Plan computes the freshness verdict for every unit without executing
// any step body. Used by dry-run mode.
func (b *Batch) Plan(step Step, subjects, sessions, exclusions []string) ([]PlanEntry, error) {
	units, err := EnumerateUnits(subjects, sessions, exclusions)
	if err != nil {
		return nil, err
	}

	entries := make([]PlanEntry, 0, len(units))
	for _, unit := range units {
		cfg, err := b.builder.Build(step.Name(), unit)
		if err != nil {
			return nil, err
		}
		inputs := step.Inputs(cfg)
		outputs := step.Outputs(cfg)

		var opts FreshnessOptions
		if b.hashConfig {
			opts.ConfigHash = cfg.Hash()
			opts.StampPath = StampPath(step.Name(), unit, outputs)
		}

		entries = append(entries, PlanEntry{
			Unit:    unit,
			Verdict: Decide(inputs, outputs, opts),
			Inputs:  model.SortedRefs(inputs),
			Outputs: model.SortedRefs(outputs),
		})
	}
	return entries, nil
}
