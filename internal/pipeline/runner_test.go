package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/pkg/model"
)

// fakeStep is a configurable step for orchestrator tests.
type fakeStep struct {
	name      string
	inputsFn  func(cfg *config.Snapshot) map[string]model.ArtifactRef
	outputsFn func(cfg *config.Snapshot) map[string]model.ArtifactRef
	runFn     func(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error)
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Inputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	if s.inputsFn == nil {
		return map[string]model.ArtifactRef{}
	}
	return s.inputsFn(cfg)
}

func (s *fakeStep) Outputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	if s.outputsFn == nil {
		return map[string]model.ArtifactRef{}
	}
	return s.outputsFn(cfg)
}

func (s *fakeStep) Run(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error) {
	if s.runFn == nil {
		return map[string]model.ArtifactRef{}, nil
	}
	return s.runFn(ctx, inputs, cfg)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerSuccess(t *testing.T) {
	step := &fakeStep{
		name: "epochs",
		runFn: func(_ context.Context, _ map[string]model.ArtifactRef, _ *config.Snapshot) (map[string]model.ArtifactRef, error) {
			return map[string]model.ArtifactRef{
				"epochs": {Name: "epochs", Path: "/out/epo.fif"},
			}, nil
		},
	}

	rec := NewRunner(discardLogger()).Run(context.Background(), step, model.WorkUnit{Subject: "SB01"}, nil, nil)

	if rec.Status != model.StatusSuccess {
		t.Fatalf("status = %s", rec.Status)
	}
	if len(rec.Outputs) != 1 || rec.Outputs[0].Name != "epochs" {
		t.Errorf("outputs = %v", rec.Outputs)
	}
	if rec.ErrorKind != "" || rec.ErrorMsg != "" {
		t.Errorf("success record carries error fields: %s %s", rec.ErrorKind, rec.ErrorMsg)
	}
}

func TestRunnerClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind model.ErrorKind
	}{
		{"missing input", &model.MissingInputError{Name: "raw", Path: "/x"}, model.ErrKindMissingInput},
		{"computation", &model.ComputationError{Step: "epochs", Err: errors.New("bad")}, model.ErrKindComputation},
		{"output write", &model.OutputWriteError{Name: "o", Path: "/x", Err: errors.New("denied")}, model.ErrKindOutputWrite},
		{"unclassified", errors.New("anything"), model.ErrKindUnclassified},
	}

	r := NewRunner(discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := &fakeStep{
				name: "epochs",
				runFn: func(_ context.Context, _ map[string]model.ArtifactRef, _ *config.Snapshot) (map[string]model.ArtifactRef, error) {
					return nil, tt.err
				},
			}
			rec := r.Run(context.Background(), step, model.WorkUnit{Subject: "SB01"}, nil, nil)
			if rec.Status != model.StatusFailed {
				t.Fatalf("status = %s", rec.Status)
			}
			if rec.ErrorKind != tt.kind {
				t.Errorf("kind = %s, want %s", rec.ErrorKind, tt.kind)
			}
			if rec.ErrorMsg == "" {
				t.Error("failure record must retain the error message")
			}
		})
	}
}

func TestRunnerContainsPanic(t *testing.T) {
	step := &fakeStep{
		name: "ica",
		runFn: func(_ context.Context, _ map[string]model.ArtifactRef, _ *config.Snapshot) (map[string]model.ArtifactRef, error) {
			panic("solver blew up")
		},
	}

	rec := NewRunner(discardLogger()).Run(context.Background(), step, model.WorkUnit{Subject: "SB01"}, nil, nil)

	if rec.Status != model.StatusFailed {
		t.Fatalf("panic must become a FAILED record, got %s", rec.Status)
	}
	if rec.ErrorKind != model.ErrKindUnclassified {
		t.Errorf("kind = %s", rec.ErrorKind)
	}
}
