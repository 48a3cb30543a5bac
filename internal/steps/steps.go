// Package steps implements the study's processing steps. Each step
// declares its input and output artifacts from the configuration snapshot
// and delegates the numerical work to an external tool; the orchestration
// framework never inspects artifact contents, only existence and location.
package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/internal/pipeline"
	"github.com/me/megpipe/internal/toolrun"
	"github.com/me/megpipe/pkg/model"
)

// Definition couples a step with its scheduling traits.
type Definition struct {
	Step pipeline.Step
	// PerRun steps process one (subject, run) per unit; the others take
	// one unit per subject and read all runs themselves.
	PerRun bool
	// JobsDivisor shrinks the worker pool for memory-heavy steps.
	// The epochs step holds every run in memory at once, so it runs with
	// a quarter of the configured jobs.
	JobsDivisor int
}

// Registry returns the study steps in pipeline order.
func Registry(tools *toolrun.Invoker) []Definition {
	return []Definition{
		{Step: NewFilter(tools), PerRun: true, JobsDivisor: 1},
		{Step: NewEvents(tools), PerRun: true, JobsDivisor: 1},
		{Step: NewEpochs(tools), JobsDivisor: 4},
		{Step: NewICA(tools), JobsDivisor: 1},
		{Step: NewForward(tools), JobsDivisor: 1},
	}
}

// Lookup finds a step definition by name.
func Lookup(tools *toolrun.Invoker, name string) (Definition, error) {
	for _, def := range Registry(tools) {
		if def.Step.Name() == name {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("unknown step %q", name)
}

// Names lists the step names in pipeline order.
func Names() []string {
	return []string{"filter", "events", "epochs", "ica", "forward"}
}

// runTool executes the step's external tool and verifies the declared
// outputs were written. Shared by all step bodies.
func runTool(ctx context.Context, tools *toolrun.Invoker, cfg *config.Snapshot, defaultTool string, args []string, outputs map[string]model.ArtifactRef) (map[string]model.ArtifactRef, error) {
	for _, ref := range outputs {
		if err := os.MkdirAll(filepath.Dir(ref.Path), 0o755); err != nil {
			return nil, &model.OutputWriteError{Name: ref.Name, Path: ref.Path, Err: err}
		}
	}

	tool := cfg.Tool
	if tool == "" {
		tool = defaultTool
	}

	res, err := tools.Run(ctx, tool, args)
	if err != nil {
		exitCode := 0
		if res != nil {
			exitCode = res.ExitCode
		}
		return nil, &model.ComputationError{Step: cfg.Step, ExitCode: exitCode, Err: err}
	}

	if err := pipeline.VerifyOutputs(outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// eventsExtension names the event file produced for a run, derived from
// the filtered raw name the way the study template does.
func eventsExtension(cfg *config.Snapshot, run string) string {
	return cfg.RawExtension(run) + "-eve"
}

// inputName suffixes a logical input name with the run for multi-run
// subjects ("raw", "raw_run01", ...).
func inputName(base, run string) string {
	if run == "" {
		return base
	}
	return base + "_" + run
}
