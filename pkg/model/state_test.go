package model

import "testing"

func TestUnitStateIsTerminal(t *testing.T) {
	tests := []struct {
		state UnitState
		want  bool
	}{
		{UnitStateEnumerated, false},
		{UnitStateSnapshotBuilt, false},
		{UnitStateInputsResolved, false},
		{UnitStateRunning, false},
		{UnitStateSuccess, true},
		{UnitStateFailed, true},
		{UnitStateSkipped, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestUnitStateTransitions(t *testing.T) {
	valid := []struct{ from, to UnitState }{
		{UnitStateEnumerated, UnitStateSnapshotBuilt},
		{UnitStateEnumerated, UnitStateFailed},
		{UnitStateSnapshotBuilt, UnitStateInputsResolved},
		{UnitStateSnapshotBuilt, UnitStateFailed},
		{UnitStateInputsResolved, UnitStateRunning},
		{UnitStateInputsResolved, UnitStateSkipped},
		{UnitStateRunning, UnitStateSuccess},
		{UnitStateRunning, UnitStateFailed},
	}
	for _, tt := range valid {
		if !tt.from.CanTransitionTo(tt.to) {
			t.Errorf("expected %s -> %s to be valid", tt.from, tt.to)
		}
	}

	invalid := []struct{ from, to UnitState }{
		{UnitStateEnumerated, UnitStateRunning},
		{UnitStateInputsResolved, UnitStateSuccess},
		{UnitStateSkipped, UnitStateRunning},
		{UnitStateSuccess, UnitStateFailed},
		{UnitStateRunning, UnitStateSkipped},
	}
	for _, tt := range invalid {
		if tt.from.CanTransitionTo(tt.to) {
			t.Errorf("expected %s -> %s to be invalid", tt.from, tt.to)
		}
	}
}

func TestWorkUnitKey(t *testing.T) {
	u := WorkUnit{Subject: "SB01"}
	if u.Key() != "SB01" {
		t.Errorf("expected SB01, got %s", u.Key())
	}

	u = WorkUnit{Subject: "SB01", Session: "run01"}
	if u.Key() != "SB01/run01" {
		t.Errorf("expected SB01/run01, got %s", u.Key())
	}
}
