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

// Events extracts trigger events from one filtered raw run.
// Unit session = run.
type Events struct {
	tools *toolrun.Invoker
}

// NewEvents creates the event-extraction step.
func NewEvents(tools *toolrun.Invoker) *Events {
	return &Events{tools: tools}
}

func (s *Events) Name() string { return "events" }

func (s *Events) Inputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	run := cfg.Unit.Session
	return map[string]model.ArtifactRef{
		"filtered_raw": {Name: "filtered_raw", Path: cfg.MEGPath(cfg.RawExtension(run))},
	}
}

func (s *Events) Outputs(cfg *config.Snapshot) map[string]model.ArtifactRef {
	run := cfg.Unit.Session
	return map[string]model.ArtifactRef{
		"events": {Name: "events", Path: cfg.MEGPath(eventsExtension(cfg, run))},
	}
}

func (s *Events) Run(ctx context.Context, inputs map[string]model.ArtifactRef, cfg *config.Snapshot) (map[string]model.ArtifactRef, error) {
	if err := pipeline.RequireInputs(inputs); err != nil {
		return nil, err
	}
	outputs := s.Outputs(cfg)

	args := []string{
		"--raw", inputs["filtered_raw"].Path,
		"--out", outputs["events"].Path,
		"--stim-channel", cfg.Epochs.StimChannel,
		"--min-duration", fmt.Sprintf("%g", cfg.Epochs.MinEventDuration),
	}
	if cfg.Epochs.TriggerTimeShift != 0 {
		args = append(args, "--shift", fmt.Sprintf("%g", cfg.Epochs.TriggerTimeShift))
	}

	// Stable event order keeps the command line reproducible.
	names := make([]string, 0, len(cfg.Epochs.EventID))
	for name := range cfg.Epochs.EventID {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--event", fmt.Sprintf("%s=%d", name, cfg.Epochs.EventID[name]))
	}

	return runTool(ctx, s.tools, cfg, "megproc-events", args, outputs)
}
