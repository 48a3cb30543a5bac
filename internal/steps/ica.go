package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/internal/pipeline"
	"github.com/me/megpipe/internal/toolrun"
	"github.com/me/megpipe/pkg/model"
)

// ICA decomposes a subject's epochs, drops ECG/EOG components (automatic
// detection plus the per-subject manual exclusions), and writes the
// cleaned epochs. One unit per subject.
type ICA struct {
	tools *toolrun.Invoker
}

// NewICA creates the artifact-cleaning step.
func NewICA(tools *toolrun.Invoker) *ICA {
	return &ICA{tools: tools}
}

func (s *ICA) Name() string { return "ica" }

func (s *ICA) Inputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	return map[string]model.ArtifactRef{
		"epochs": {Name: "epochs", Path: cfg.MEGPath("-epo")},
	}
}

func (s *ICA) Outputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	return map[string]model.ArtifactRef{
		"ica":            {Name: "ica", Path: cfg.MEGPath("-ica")},
		"cleaned_epochs": {Name: "cleaned_epochs", Path: cfg.MEGPath("_cleaned-epo")},
	}
}

func (s *ICA) Run(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error) {
	if err := pipeline.RequireInputs(inputs); err != nil {
		return nil, err
	}
	outputs := s.Outputs(cfg)

	args := []string{
		"--epochs", inputs["epochs"].Path,
		"--out-ica", outputs["ica"].Path,
		"--out-epochs", outputs["cleaned_epochs"].Path,
		"--decim", fmt.Sprintf("%d", cfg.ICA.Decim),
		"--ecg-threshold", fmt.Sprintf("%g", cfg.ICA.ECGThreshold),
	}
	if comps := cfg.ExcludedComponents.MEG; len(comps) > 0 {
		args = append(args, "--exclude-meg", joinInts(comps))
	}
	if comps := cfg.ExcludedComponents.EEG; len(comps) > 0 {
		args = append(args, "--exclude-eeg", joinInts(comps))
	}

	return runTool(ctx, s.tools, cfg, "megproc-ica", args, outputs)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}
