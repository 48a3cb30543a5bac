package pipeline

import (
	"context"
	"sync"

	"github.com/me/megpipe/pkg/model"
)

// UnitFunc runs the full per-unit pipeline (snapshot, resolve, freshness,
// step body) for one work unit and returns its outcome record. It must
// not share mutable state with other units.
type UnitFunc func(ctx context.Context, unit model.WorkUnit) model.OutcomeRecord

// Backend dispatches a UnitFunc over all work units. Implementations must
// return outcome records in unit order regardless of completion order,
// and must not change per-unit semantics: a correct program produces the
// same records under every backend.
type Backend interface {
	Dispatch(ctx context.Context, units []model.WorkUnit, fn UnitFunc) []model.OutcomeRecord
}

// Sequential executes units one at a time in enumeration order. Single
// worker, deterministic interleaving, easiest to debug.
type Sequential struct{}

// Dispatch runs every unit in order on the calling goroutine.
func (Sequential) Dispatch(ctx context.Context, units []model.WorkUnit, fn UnitFunc) []model.OutcomeRecord {
	records := make([]model.OutcomeRecord, len(units))
	for i, unit := range units {
		records[i] = fn(ctx, unit)
	}
	return records
}

// Pool executes units on a bounded pool of workers. The pool size is an
// explicit configuration input, not auto-detected, so memory-heavy steps
// can be run with a smaller pool than IO-bound ones.
type Pool struct {
	Workers int
}

// Dispatch fans units out to the workers and reassembles the results in
// unit order. Each worker writes only to its own result slot, so the
// slice needs no locking.
func (p Pool) Dispatch(ctx context.Context, units []model.WorkUnit, fn UnitFunc) []model.OutcomeRecord {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(units) {
		workers = len(units)
	}

	records := make([]model.OutcomeRecord, len(units))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = fn(ctx, units[i])
			}
		}()
	}

	for i := range units {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return records
}
