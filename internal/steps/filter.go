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

// Filter band-pass filters (and optionally maxwell filters) one raw run.
// Unit session = run.
type Filter struct {
	tools *toolrun.Invoker
}

// NewFilter creates the filter step.
func NewFilter(tools *toolrun.Invoker) *Filter {
	return &Filter{tools: tools}
}

func (s *Filter) Name() string { return "filter" }

// Inputs declares the unprocessed raw recording for the unit's run.
func (s *Filter) Inputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	run := cfg.Unit.Session
	return map[string]model.ArtifactRef{
		"raw": {Name: "raw", Path: cfg.MEGPath(run + "_raw")},
	}
}

// Outputs declares the filtered raw file; maxwell filtering changes the
// extension from _filt_raw to _sss_raw.
func (s *Filter) Outputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	run := cfg.Unit.Session
	return map[string]model.ArtifactRef{
		"filtered_raw": {Name: "filtered_raw", Path: cfg.MEGPath(cfg.RawExtension(run))},
	}
}

func (s *Filter) Run(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error) {
	if err := pipeline.RequireInputs(inputs); err != nil {
		return nil, err
	}
	outputs := s.Outputs(cfg)

	run := cfg.Unit.Session
	args := []string{
		"--raw", inputs["raw"].Path,
		"--out", outputs["filtered_raw"].Path,
	}
	if cfg.Filter.LowFreq > 0 {
		args = append(args, "--l-freq", fmt.Sprintf("%g", cfg.Filter.LowFreq))
	}
	if cfg.Filter.HighFreq > 0 {
		args = append(args, "--h-freq", fmt.Sprintf("%g", cfg.Filter.HighFreq))
	}
	if cfg.Resample.SFreq > 0 {
		args = append(args, "--resample", fmt.Sprintf("%g", cfg.Resample.SFreq))
	}
	if bads := cfg.BadChannels[run]; len(bads) > 0 {
		args = append(args, "--bads", strings.Join(bads, ","))
	}
	if cfg.Maxwell.Use {
		args = append(args, "--maxwell",
			"--cal-file", cfg.Maxwell.CalFile,
			"--ctc-file", cfg.Maxwell.CTCFile,
			"--head-origin", cfg.Maxwell.HeadOrigin,
			"--reference-run", fmt.Sprintf("%d", cfg.Maxwell.ReferenceRun))
		if cfg.Maxwell.STDuration > 0 {
			args = append(args, "--st-duration", fmt.Sprintf("%g", cfg.Maxwell.STDuration))
		}
	}

	return runTool(ctx, s.tools, cfg, "megproc-filter", args, outputs)
}
