package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/megpipe/pkg/model"
)

func writeFile(t *testing.T, dir, name string, mtime time.Time) model.ArtifactRef {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	return model.ArtifactRef{Name: name, Path: path}
}

func TestDecideCurrent(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)
	recent := time.Now().Add(-time.Minute)

	inputs := map[string]model.ArtifactRef{
		"raw": writeFile(t, dir, "raw.fif", old),
	}
	outputs := map[string]model.ArtifactRef{
		"epochs": writeFile(t, dir, "epo.fif", recent),
	}

	if v := Decide(inputs, outputs, FreshnessOptions{}); v != Current {
		t.Errorf("outputs newer than inputs should be CURRENT, got %s", v)
	}
}

func TestDecideStaleOutputOlderThanInput(t *testing.T) {
	dir := t.TempDir()
	inputs := map[string]model.ArtifactRef{
		"raw": writeFile(t, dir, "raw.fif", time.Now().Add(-time.Minute)),
	}
	outputs := map[string]model.ArtifactRef{
		"epochs": writeFile(t, dir, "epo.fif", time.Now().Add(-time.Hour)),
	}

	if v := Decide(inputs, outputs, FreshnessOptions{}); v != Stale {
		t.Errorf("output older than input should be STALE, got %s", v)
	}
}

func TestDecideStaleMissingOutput(t *testing.T) {
	dir := t.TempDir()
	inputs := map[string]model.ArtifactRef{
		"raw": writeFile(t, dir, "raw.fif", time.Time{}),
	}
	outputs := map[string]model.ArtifactRef{
		"epochs": {Name: "epochs", Path: filepath.Join(dir, "missing.fif")},
	}

	if v := Decide(inputs, outputs, FreshnessOptions{}); v != Stale {
		t.Errorf("missing output should be STALE, got %s", v)
	}
}

func TestDecideMissingInputIgnoredForTimestamps(t *testing.T) {
	dir := t.TempDir()
	inputs := map[string]model.ArtifactRef{
		"raw": {Name: "raw", Path: filepath.Join(dir, "never-created.fif")},
	}
	outputs := map[string]model.ArtifactRef{
		"epochs": writeFile(t, dir, "epo.fif", time.Time{}),
	}

	// The verdict only compares against inputs that exist; validating
	// input presence is the step body's job.
	if v := Decide(inputs, outputs, FreshnessOptions{}); v != Current {
		t.Errorf("missing input should not force STALE, got %s", v)
	}
}

func TestDecideNoDeclaredOutputs(t *testing.T) {
	if v := Decide(nil, nil, FreshnessOptions{}); v != Stale {
		t.Errorf("no declared outputs should be STALE, got %s", v)
	}
}

func TestDecideConfigHash(t *testing.T) {
	dir := t.TempDir()
	unit := model.WorkUnit{Subject: "SB01"}
	inputs := map[string]model.ArtifactRef{
		"raw": writeFile(t, dir, "raw.fif", time.Now().Add(-time.Hour)),
	}
	outputs := map[string]model.ArtifactRef{
		"epochs": writeFile(t, dir, "epo.fif", time.Time{}),
	}

	stamp := StampPath("epochs", unit, outputs)
	opts := FreshnessOptions{ConfigHash: "abc123", StampPath: stamp}

	// No stamp recorded yet: stale even though timestamps are fine.
	if v := Decide(inputs, outputs, opts); v != Stale {
		t.Errorf("missing stamp should be STALE, got %s", v)
	}

	if err := WriteStamp(stamp, "abc123"); err != nil {
		t.Fatal(err)
	}
	if v := Decide(inputs, outputs, opts); v != Current {
		t.Errorf("matching stamp should be CURRENT, got %s", v)
	}

	// A parameter change produces a different hash and invalidates the skip.
	opts.ConfigHash = "def456"
	if v := Decide(inputs, outputs, opts); v != Stale {
		t.Errorf("hash mismatch should be STALE, got %s", v)
	}
}

func TestStampPathPerUnit(t *testing.T) {
	outputs := map[string]model.ArtifactRef{
		"epochs": {Name: "epochs", Path: "/data/MEG/SB01/SB01_Localizer-epo.fif"},
	}
	a := StampPath("epochs", model.WorkUnit{Subject: "SB01"}, outputs)
	b := StampPath("epochs", model.WorkUnit{Subject: "SB01", Session: "run01"}, outputs)
	if a == b {
		t.Error("stamp paths must differ per unit")
	}
	if filepath.Dir(a) != "/data/MEG/SB01" {
		t.Errorf("stamp should live next to the outputs, got %s", a)
	}
}
