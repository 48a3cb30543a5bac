package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/megpipe/pkg/model"
)

// Verdict is the freshness decision for one (step, unit): whether the
// declared outputs are provably up to date. It is recomputed from the
// filesystem on every invocation and never persisted.
type Verdict int

const (
	// Stale means the step must run.
	Stale Verdict = iota
	// Current means every declared output exists and is at least as new
	// as every existing declared input.
	Current
)

func (v Verdict) String() string {
	if v == Current {
		return "CURRENT"
	}
	return "STALE"
}

// FreshnessOptions extends the timestamp comparison.
type FreshnessOptions struct {
	// ConfigHash, when non-empty, additionally requires that the stamp
	// recorded by the previous successful run matches. This closes the
	// staleness gap where a parameter change touches no input file.
	// Disabled (empty) by default, matching plain build-system behavior.
	ConfigHash string
	// StampPath locates the recorded stamp; required when ConfigHash is set.
	StampPath string
}

// Decide compares declared outputs against declared inputs by modification
// time. The verdict is Current iff every output exists and none is older
// than any input that exists. Missing inputs do not force a verdict by
// themselves; the step body is expected to fail fast on them.
func Decide(inputs, outputs map[string]model.ArtifactRef, opts FreshnessOptions) Verdict {
	if len(outputs) == 0 {
		return Stale
	}

	var oldestOutput time.Time
	for _, ref := range outputs {
		info, err := os.Stat(ref.Path)
		if err != nil {
			return Stale
		}
		if oldestOutput.IsZero() || info.ModTime().Before(oldestOutput) {
			oldestOutput = info.ModTime()
		}
	}

	for _, ref := range inputs {
		info, err := os.Stat(ref.Path)
		if err != nil {
			continue
		}
		if oldestOutput.Before(info.ModTime()) {
			return Stale
		}
	}

	if opts.ConfigHash != "" {
		recorded, err := os.ReadFile(opts.StampPath)
		if err != nil || strings.TrimSpace(string(recorded)) != opts.ConfigHash {
			return Stale
		}
	}

	return Current
}

// StampPath places the config-hash stamp next to the step's outputs,
// named after the step and unit so concurrent units never collide.
func StampPath(step string, unit model.WorkUnit, outputs map[string]model.ArtifactRef) string {
	refs := model.SortedRefs(outputs)
	if len(refs) == 0 {
		return ""
	}
	name := "." + step + "-" + strings.ReplaceAll(unit.Key(), "/", "-") + ".stamp"
	return filepath.Join(filepath.Dir(refs[0].Path), name)
}

// WriteStamp records the config hash after a successful run.
func WriteStamp(path, hash string) error {
	if err := os.WriteFile(path, []byte(hash+"\n"), 0o644); err != nil {
		return fmt.Errorf("write stamp %s: %w", path, err)
	}
	return nil
}
