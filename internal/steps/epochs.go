package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/internal/pipeline"
	"github.com/me/megpipe/internal/toolrun"
	"github.com/me/megpipe/pkg/model"
)

// Epochs constructs epoched trials from all of a subject's runs: the
// filtered raw files are concatenated with their event files, epochs are
// cut around the time-locking events, and transient artifacts are
// rejected by peak-to-peak threshold. One unit per subject.
type Epochs struct {
	tools *toolrun.Invoker
}

// NewEpochs creates the epoching step.
func NewEpochs(tools *toolrun.Invoker) *Epochs {
	return &Epochs{tools: tools}
}

func (s *Epochs) Name() string { return "epochs" }

// Inputs declares one filtered raw and one event file per configured run.
func (s *Epochs) Inputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	inputs := make(map[string]model.ArtifactRef, 2*len(cfg.Runs))
	for _, run := range cfg.Runs {
		rawName := inputName("raw", run)
		eveName := inputName("events", run)
		inputs[rawName] = model.ArtifactRef{Name: rawName, Path: cfg.MEGPath(cfg.RawExtension(run))}
		inputs[eveName] = model.ArtifactRef{Name: eveName, Path: cfg.MEGPath(eventsExtension(cfg, run))}
	}
	return inputs
}

func (s *Epochs) Outputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	return map[string]model.ArtifactRef{
		"epochs": {Name: "epochs", Path: cfg.MEGPath("-epo")},
	}
}

func (s *Epochs) Run(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error) {
	if err := pipeline.RequireInputs(inputs); err != nil {
		return nil, err
	}
	outputs := s.Outputs(cfg)

	args := []string{"--out", outputs["epochs"].Path}
	for _, run := range cfg.Runs {
		args = append(args,
			"--raw", inputs[inputName("raw", run)].Path,
			"--events", inputs[inputName("events", run)].Path)
	}
	args = append(args,
		"--tmin", fmt.Sprintf("%g", cfg.Epochs.Tmin),
		"--tmax", fmt.Sprintf("%g", cfg.Epochs.Tmax),
	)
	if len(cfg.Epochs.Baseline) == 2 {
		args = append(args, "--baseline", fmt.Sprintf("%g,%g", cfg.Epochs.Baseline[0], cfg.Epochs.Baseline[1]))
	}
	if cfg.Resample.Decim > 1 {
		args = append(args, "--decim", fmt.Sprintf("%d", cfg.Resample.Decim))
	}

	chTypes := make([]string, 0, len(cfg.Reject))
	for ch := range cfg.Reject {
		chTypes = append(chTypes, ch)
	}
	sort.Strings(chTypes)
	for _, ch := range chTypes {
		args = append(args, "--reject", fmt.Sprintf("%s=%g", ch, cfg.Reject[ch]))
	}

	return runTool(ctx, s.tools, cfg, "megproc-epochs", args, outputs)
}
