package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/megpipe/pkg/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
study_name: Localizer
study_path: /data/localizer
subjects: [SB01, SB02, SB04]
exclude_subjects: [SB02]
runs: [run01, run02]
ch_types: [meg]
filter:
  l_freq: 1
  h_freq: 40
maxwell:
  use: true
  reference_run: 0
epochs:
  tmin: -0.6
  tmax: 1.5
  baseline: [-0.6, -0.5]
  stim_channel: STI101
  event_id:
    incoherent/1: 33
    coherent/up: 39
bads:
  SB01: [MEG1723, MEG1722]
run_bads:
  SB04:
    run02: [MEG0543]
reject_components:
  SB01:
    meg: [3, 7]
jobs: 4
`)

	study, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if study.StudyName != "Localizer" {
		t.Errorf("study_name = %s", study.StudyName)
	}
	if study.MEGDir != filepath.Join("/data/localizer", "MEG") {
		t.Errorf("meg_dir default not applied: %s", study.MEGDir)
	}
	if study.SubjectsDir != filepath.Join("/data/localizer", "subjects") {
		t.Errorf("subjects_dir default not applied: %s", study.SubjectsDir)
	}
	if study.DBPath != filepath.Join("/data/localizer", "megpipe.db") {
		t.Errorf("db_path default not applied: %s", study.DBPath)
	}
	if len(study.Runs) != 2 || study.Runs[0] != "run01" {
		t.Errorf("runs = %v", study.Runs)
	}
	if !study.Maxwell.Use {
		t.Error("maxwell.use should be true")
	}
	if study.Epochs.EventID["incoherent/1"] != 33 {
		t.Errorf("event_id = %v", study.Epochs.EventID)
	}
	// Defaults survive a partial config.
	if study.ICA.Decim != 11 {
		t.Errorf("ica decim default = %d", study.ICA.Decim)
	}
	if study.Reject["grad"] != 4000e-13 {
		t.Errorf("reject default = %v", study.Reject)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Study {
		s := DefaultStudy()
		s.StudyName = "Localizer"
		s.StudyPath = "/data"
		s.Subjects = []string{"SB01", "SB02"}
		s.applyDerivedDefaults()
		return s
	}

	tests := []struct {
		name   string
		mutate func(*Study)
		field  string
	}{
		{
			name:   "empty roster",
			mutate: func(s *Study) { s.Subjects = nil },
			field:  "subjects",
		},
		{
			name: "maxwell without MEG channels",
			mutate: func(s *Study) {
				s.Maxwell.Use = true
				s.ChannelTypes = []string{"eeg"}
			},
			field: "maxwell.use",
		},
		{
			name:   "ssp and ica together",
			mutate: func(s *Study) { s.UseSSP = true; s.UseICA = true },
			field:  "use_ssp",
		},
		{
			name:   "bads for unknown subject",
			mutate: func(s *Study) { s.Bads = map[string][]string{"SB99": {"MEG0111"}} },
			field:  "bads",
		},
		{
			name: "reject components for unknown subject",
			mutate: func(s *Study) {
				s.RejectComps = map[string]ComponentExclusions{"SB99": {MEG: []int{1}}}
			},
			field: "reject_components",
		},
		{
			name:   "exclusion of unknown subject",
			mutate: func(s *Study) { s.ExcludeSubjects = []string{"SB99"} },
			field:  "exclude_subjects",
		},
		{
			name:   "malformed baseline",
			mutate: func(s *Study) { s.Epochs.Baseline = []float64{-0.6} },
			field:  "epochs.baseline",
		},
		{
			name: "reference run out of range",
			mutate: func(s *Study) {
				s.Maxwell.Use = true
				s.Maxwell.ReferenceRun = 5
			},
			field: "maxwell.reference_run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cfgErr *model.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %T", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("field = %s, want %s", cfgErr.Field, tt.field)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("valid study should pass: %v", err)
	}
}
