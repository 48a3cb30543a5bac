package model

// Status is the terminal outcome of one (step, WorkUnit) execution.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// UnitState tracks one WorkUnit's progress through the pipeline for a step.
type UnitState string

const (
	UnitStateEnumerated     UnitState = "ENUMERATED"
	UnitStateSnapshotBuilt  UnitState = "SNAPSHOT_BUILT"
	UnitStateInputsResolved UnitState = "INPUTS_RESOLVED"
	UnitStateRunning        UnitState = "RUNNING"
	UnitStateSuccess        UnitState = "SUCCESS"
	UnitStateFailed         UnitState = "FAILED"
	UnitStateSkipped        UnitState = "SKIPPED"
)

// String returns the string representation of the unit state.
func (s UnitState) String() string {
	return string(s)
}

// IsTerminal returns true if the unit is in a final state.
func (s UnitState) IsTerminal() bool {
	switch s {
	case UnitStateSuccess, UnitStateFailed, UnitStateSkipped:
		return true
	}
	return false
}

// ValidUnitTransitions defines the allowed per-unit state transitions.
// A unit may fail straight out of SNAPSHOT_BUILT when its configuration
// snapshot cannot be constructed.
var ValidUnitTransitions = map[UnitState][]UnitState{
	UnitStateEnumerated:     {UnitStateSnapshotBuilt, UnitStateFailed},
	UnitStateSnapshotBuilt:  {UnitStateInputsResolved, UnitStateFailed},
	UnitStateInputsResolved: {UnitStateRunning, UnitStateSkipped},
	UnitStateRunning:        {UnitStateSuccess, UnitStateFailed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s UnitState) CanTransitionTo(next UnitState) bool {
	for _, allowed := range ValidUnitTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
