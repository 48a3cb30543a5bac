package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/me/megpipe/pkg/model"
)

func unitRange(n int) []model.WorkUnit {
	units := make([]model.WorkUnit, n)
	for i := range units {
		units[i] = model.WorkUnit{Subject: fmt.Sprintf("SB%02d", i+1)}
	}
	return units
}

func TestSequentialDispatch(t *testing.T) {
	units := unitRange(5)
	records := Sequential{}.Dispatch(context.Background(), units, func(_ context.Context, u model.WorkUnit) model.OutcomeRecord {
		return model.OutcomeRecord{Unit: u, Status: model.StatusSuccess}
	})

	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Unit != units[i] {
			t.Errorf("record %d out of order: %v", i, rec.Unit)
		}
	}
}

func TestPoolDispatchOrderPreserved(t *testing.T) {
	units := unitRange(20)
	rng := rand.New(rand.NewSource(7))
	delays := make([]time.Duration, len(units))
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(20)) * time.Millisecond
	}

	var mu sync.Mutex
	byIndex := make(map[string]int, len(units))
	for i, u := range units {
		byIndex[u.Subject] = i
	}

	records := Pool{Workers: 4}.Dispatch(context.Background(), units, func(_ context.Context, u model.WorkUnit) model.OutcomeRecord {
		mu.Lock()
		d := delays[byIndex[u.Subject]]
		mu.Unlock()
		time.Sleep(d)
		return model.OutcomeRecord{Unit: u, Status: model.StatusSuccess}
	})

	if len(records) != len(units) {
		t.Fatalf("expected %d records, got %d", len(units), len(records))
	}
	// Order equals enumeration order regardless of completion order.
	for i, rec := range records {
		if rec.Unit != units[i] {
			t.Errorf("record %d = %v, want %v", i, rec.Unit, units[i])
		}
	}
}

func TestPoolDispatchExactlyOncePerUnit(t *testing.T) {
	units := unitRange(50)

	var mu sync.Mutex
	seen := make(map[string]int)

	Pool{Workers: 8}.Dispatch(context.Background(), units, func(_ context.Context, u model.WorkUnit) model.OutcomeRecord {
		mu.Lock()
		seen[u.Subject]++
		mu.Unlock()
		return model.OutcomeRecord{Unit: u, Status: model.StatusSuccess}
	})

	for _, u := range units {
		if seen[u.Subject] != 1 {
			t.Errorf("unit %s executed %d times", u.Subject, seen[u.Subject])
		}
	}
}

func TestPoolDispatchBoundsWorkers(t *testing.T) {
	units := unitRange(30)

	var mu sync.Mutex
	inFlight, peak := 0, 0

	Pool{Workers: 3}.Dispatch(context.Background(), units, func(_ context.Context, u model.WorkUnit) model.OutcomeRecord {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return model.OutcomeRecord{Unit: u}
	})

	if peak > 3 {
		t.Errorf("pool exceeded worker bound: peak %d", peak)
	}
}

func TestBackendsProduceSameRecords(t *testing.T) {
	units := unitRange(10)
	fn := func(_ context.Context, u model.WorkUnit) model.OutcomeRecord {
		status := model.StatusSuccess
		if u.Subject == "SB04" {
			status = model.StatusFailed
		}
		return model.OutcomeRecord{Unit: u, Step: "filter", Status: status}
	}

	seq := Sequential{}.Dispatch(context.Background(), units, fn)
	par := Pool{Workers: 5}.Dispatch(context.Background(), units, fn)

	for i := range seq {
		if seq[i].Unit != par[i].Unit || seq[i].Status != par[i].Status {
			t.Errorf("backend mismatch at %d: %+v vs %+v", i, seq[i], par[i])
		}
	}
}
