// Package pipeline is the step-execution and orchestration core: it
// enumerates work units, builds per-unit configuration snapshots, decides
// whether a step's outputs are already current, executes step bodies
// inside a fault-isolating boundary, and aggregates the per-unit outcomes
// into a run summary.
package pipeline

import (
	"context"
	"os"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/pkg/model"
)

// Step is the contract a processing step implements to run under the
// batch orchestrator. Inputs and Outputs are deterministic functions of
// the configuration snapshot alone and perform no I/O; Run is the opaque
// step body that does the actual computation and artifact writes.
type Step interface {
	Name() string

	// Inputs declares the artifacts the step reads for one unit, keyed by
	// logical name. Existence is not checked here.
	Inputs(cfg *config.Snapshot) map[string]model.ArtifactRef

	// Outputs declares the artifacts the step will produce for one unit.
	Outputs(cfg *config.Snapshot) map[string]model.ArtifactRef

	// Run executes the step body with resolved inputs. It returns the
	// produced artifacts or an error from the model taxonomy.
	Run(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error)
}

// RequireInputs verifies that every declared input exists on disk.
// Step bodies call this first so a deleted or never-produced input
// surfaces as a MissingInputError instead of a tool failure.
func RequireInputs(inputs map[string]model.ArtifactRef) error {
	for _, ref := range model.SortedRefs(inputs) {
		if _, err := os.Stat(ref.Path); err != nil {
			return &model.MissingInputError{Name: ref.Name, Path: ref.Path}
		}
	}
	return nil
}

// VerifyOutputs checks that every declared output was actually persisted
// by the step body.
func VerifyOutputs(outputs map[string]model.ArtifactRef) error {
	for _, ref := range model.SortedRefs(outputs) {
		if _, err := os.Stat(ref.Path); err != nil {
			return &model.OutputWriteError{Name: ref.Name, Path: ref.Path, Err: err}
		}
	}
	return nil
}
