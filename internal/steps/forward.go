package steps

import (
	"context"
	"fmt"

	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/internal/pipeline"
	"github.com/me/megpipe/internal/toolrun"
	"github.com/me/megpipe/pkg/model"
)

// Forward computes the anatomical forward solution for a subject from the
// sensor info, the coregistration transform, the BEM solution, and the
// source space. One unit per subject.
type Forward struct {
	tools *toolrun.Invoker
}

// NewForward creates the forward-model step.
func NewForward(tools *toolrun.Invoker) *Forward {
	return &Forward{tools: tools}
}

func (s *Forward) Name() string { return "forward" }

// Inputs: the epochs file supplies sensor info; the anatomy artifacts
// live under the subjects (MRI) root.
func (s *Forward) Inputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	return map[string]model.ArtifactRef{
		"info":  {Name: "info", Path: cfg.MEGPath("-epo")},
		"trans": {Name: "trans", Path: cfg.TransPath()},
		"bem":   {Name: "bem", Path: cfg.BEMSolPath()},
		"src":   {Name: "src", Path: cfg.SourceSpacePath()},
	}
}

func (s *Forward) Outputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	return map[string]model.ArtifactRef{
		"forward": {Name: "forward", Path: cfg.MEGPath("-fwd")},
	}
}

func (s *Forward) Run(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error) {
	if err := pipeline.RequireInputs(inputs); err != nil {
		return nil, err
	}
	outputs := s.Outputs(cfg)

	args := []string{
		"--info", inputs["info"].Path,
		"--trans", inputs["trans"].Path,
		"--bem", inputs["bem"].Path,
		"--src", inputs["src"].Path,
		"--out", outputs["forward"].Path,
		"--mindist", fmt.Sprintf("%g", cfg.Forward.Mindist),
	}

	return runTool(ctx, s.tools, cfg, "megproc-forward", args, outputs)
}
