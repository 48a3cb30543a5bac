package model

import (
	"sync"
	"time"
)

// OutcomeRecord is the terminal result for one (step, WorkUnit) execution.
// Exactly one record exists per unit per batch run; it is never mutated
// after creation.
type OutcomeRecord struct {
	Unit      WorkUnit      `json:"unit"`
	Step      string        `json:"step"`
	Status    Status        `json:"status"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	ErrorMsg  string        `json:"error_message,omitempty"`
	Outputs   []ArtifactRef `json:"outputs,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RunLog collects outcome records for one batch invocation of one step.
// Append is safe under concurrent writers; it is the only operation that
// may block across workers.
type RunLog struct {
	mu      sync.Mutex
	records []OutcomeRecord
}

// NewRunLog creates an empty run log.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Append adds one outcome record.
func (l *RunLog) Append(rec OutcomeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Records returns a copy of the collected records in append order.
func (l *RunLog) Records() []OutcomeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]OutcomeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of collected records.
func (l *RunLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// RunSummary is the aggregated, queryable result of one batch invocation.
// Records are ordered by WorkUnit enumeration order regardless of the
// execution order under a parallel backend.
type RunSummary struct {
	Step      string          `json:"step"`
	Counts    map[Status]int  `json:"counts"`
	Records   []OutcomeRecord `json:"records"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// Summarize aggregates outcome records into a RunSummary.
func Summarize(step string, records []OutcomeRecord, startedAt time.Time, duration time.Duration) RunSummary {
	counts := map[Status]int{
		StatusSuccess: 0,
		StatusSkipped: 0,
		StatusFailed:  0,
	}
	for _, rec := range records {
		counts[rec.Status]++
	}
	return RunSummary{
		Step:      step,
		Counts:    counts,
		Records:   records,
		StartedAt: startedAt,
		Duration:  duration,
	}
}

// Failed returns the FAILED records with their error kinds.
func (s RunSummary) Failed() []OutcomeRecord {
	var failed []OutcomeRecord
	for _, rec := range s.Records {
		if rec.Status == StatusFailed {
			failed = append(failed, rec)
		}
	}
	return failed
}

// OK reports whether the batch as a whole succeeded. SKIPPED and SUCCESS
// are both non-failing; a single FAILED unit fails the batch.
func (s RunSummary) OK() bool {
	return s.Counts[StatusFailed] == 0
}

// ExitCode returns the process exit status for this batch: 0 if OK, 1 otherwise.
func (s RunSummary) ExitCode() int {
	if s.OK() {
		return 0
	}
	return 1
}
