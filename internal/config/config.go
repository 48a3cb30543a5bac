// Package config loads the study configuration and builds the immutable
// per-unit snapshots handed to processing steps.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/me/megpipe/pkg/model"
)

// Study holds the full study configuration: data locations, the subject
// roster, acquisition runs, step parameters, and per-subject overrides.
type Study struct {
	StudyName   string `yaml:"study_name"`
	StudyPath   string `yaml:"study_path"`
	MEGDir      string `yaml:"meg_dir"`      // default <study_path>/MEG
	SubjectsDir string `yaml:"subjects_dir"` // anatomy (MRI) root, default <study_path>/subjects

	Subjects        []string `yaml:"subjects"`
	ExcludeSubjects []string `yaml:"exclude_subjects"`
	// Runs are the per-subject acquisition runs. A single unnamed run is
	// the empty string.
	Runs         []string `yaml:"runs"`
	ChannelTypes []string `yaml:"ch_types"`

	Filter   FilterParams   `yaml:"filter"`
	Maxwell  MaxwellParams  `yaml:"maxwell"`
	Resample ResampleParams `yaml:"resample"`
	Epochs   EpochParams    `yaml:"epochs"`
	ICA      ICAParams      `yaml:"ica"`
	Forward  ForwardParams  `yaml:"forward"`

	// Reject holds peak-to-peak epoch rejection thresholds per channel type.
	Reject map[string]float64 `yaml:"reject"`

	UseSSP bool `yaml:"use_ssp"`
	UseICA bool `yaml:"use_ica"`

	// Bads lists bad channels per subject, applied to every run.
	Bads map[string][]string `yaml:"bads"`
	// RunBads lists bad channels per subject and run, merged with Bads.
	RunBads map[string]map[string][]string `yaml:"run_bads"`
	// RejectComps lists manually rejected ICA component indices per subject.
	RejectComps map[string]ComponentExclusions `yaml:"reject_components"`

	// Tools overrides the external tool binary per step name.
	Tools map[string]string `yaml:"tools"`

	// Jobs is the default worker pool size. Memory-heavy steps divide it down.
	Jobs int `yaml:"jobs"`

	DBPath  string        `yaml:"db_path"` // run history database, default <study_path>/megpipe.db
	Archive ArchiveParams `yaml:"archive"`
}

// FilterParams sets the band-pass applied to raw data. A zero cut-off
// disables that side of the band.
type FilterParams struct {
	LowFreq  float64 `yaml:"l_freq"`
	HighFreq float64 `yaml:"h_freq"`
}

// MaxwellParams configures maxwell filtering of raw MEG data.
type MaxwellParams struct {
	Use          bool    `yaml:"use"`
	STDuration   float64 `yaml:"st_duration"` // 0 disables spatiotemporal SSS
	HeadOrigin   string  `yaml:"head_origin"` // "auto" or "x,y,z" in meters
	CalFile      string  `yaml:"cal_file"`
	CTCFile      string  `yaml:"ctc_file"`
	ReferenceRun int     `yaml:"reference_run"` // run index used to align head position
}

// ResampleParams configures raw resampling and epoch decimation.
type ResampleParams struct {
	SFreq float64 `yaml:"sfreq"` // 0 disables resampling
	Decim int     `yaml:"decim"` // 1 disables decimation
}

// EpochParams configures event extraction and epoching.
type EpochParams struct {
	Tmin             float64        `yaml:"tmin"`
	Tmax             float64        `yaml:"tmax"`
	TriggerTimeShift float64        `yaml:"trigger_time_shift"`
	Baseline         []float64      `yaml:"baseline"` // [min, max]; empty disables baselining
	StimChannel      string         `yaml:"stim_channel"`
	MinEventDuration float64        `yaml:"min_event_duration"`
	EventID          map[string]int `yaml:"event_id"`
	Conditions       []string       `yaml:"conditions"`
}

// ICAParams configures the ICA artifact-cleaning step.
type ICAParams struct {
	Decim        int     `yaml:"decim"`
	ECGThreshold float64 `yaml:"ctps_ecg_threshold"`
}

// ForwardParams configures the forward-model step.
type ForwardParams struct {
	Spacing string  `yaml:"spacing"` // source space spacing, e.g. "oct6"
	Mindist float64 `yaml:"mindist"` // minimum surface distance in mm
}

// ComponentExclusions lists ICA components rejected per channel family.
type ComponentExclusions struct {
	MEG []int `yaml:"meg"`
	EEG []int `yaml:"eeg"`
}

// ArchiveParams selects an optional archive sink for batch summaries.
type ArchiveParams struct {
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
}

// DefaultStudy returns a configuration with the study template defaults.
func DefaultStudy() *Study {
	return &Study{
		Runs:         []string{""},
		ChannelTypes: []string{"meg"},
		Filter:       FilterParams{LowFreq: 1, HighFreq: 40},
		Maxwell:      MaxwellParams{HeadOrigin: "auto"},
		Resample:     ResampleParams{SFreq: 500, Decim: 1},
		Epochs: EpochParams{
			Tmin:             -0.2,
			Tmax:             0.5,
			StimChannel:      "STI101",
			MinEventDuration: 0.002,
		},
		ICA:     ICAParams{Decim: 11, ECGThreshold: 0.1},
		Forward: ForwardParams{Spacing: "oct6", Mindist: 5},
		Reject:  map[string]float64{"grad": 4000e-13, "mag": 4e-12},
		UseICA:  true,
		Jobs:    1,
	}
}

// Load reads a study configuration from a YAML file, applies defaults,
// and validates it.
func Load(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	study := DefaultStudy()
	if err := yaml.Unmarshal(data, study); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	study.applyDerivedDefaults()
	if err := study.Validate(); err != nil {
		return nil, err
	}
	return study, nil
}

func (s *Study) applyDerivedDefaults() {
	if s.MEGDir == "" && s.StudyPath != "" {
		s.MEGDir = filepath.Join(s.StudyPath, "MEG")
	}
	if s.SubjectsDir == "" && s.StudyPath != "" {
		s.SubjectsDir = filepath.Join(s.StudyPath, "subjects")
	}
	if s.DBPath == "" && s.StudyPath != "" {
		s.DBPath = filepath.Join(s.StudyPath, "megpipe.db")
	}
	if len(s.Runs) == 0 {
		s.Runs = []string{""}
	}
	if s.Jobs < 1 {
		s.Jobs = 1
	}
}

// Validate checks study-wide structural constraints. A violation means
// the batch cannot meaningfully proceed for any unit, so callers abort.
func (s *Study) Validate() error {
	if s.StudyName == "" {
		return &model.ConfigurationError{Field: "study_name", Message: "must be set"}
	}
	if s.StudyPath == "" {
		return &model.ConfigurationError{Field: "study_path", Message: "must be set"}
	}
	if len(s.Subjects) == 0 {
		return &model.ConfigurationError{Field: "subjects", Message: "roster is empty"}
	}

	if s.Maxwell.Use && !s.hasMEGChannels() {
		return &model.ConfigurationError{
			Field:   "maxwell.use",
			Message: "cannot use maxwell filter without MEG channels",
		}
	}
	if s.UseSSP && s.UseICA {
		return &model.ConfigurationError{
			Field:   "use_ssp",
			Message: "cannot use both SSP and ICA",
		}
	}
	if n := len(s.Epochs.Baseline); n != 0 && n != 2 {
		return &model.ConfigurationError{
			Field:   "epochs.baseline",
			Message: fmt.Sprintf("expected [min, max], got %d values", n),
		}
	}
	if s.Maxwell.Use && (s.Maxwell.ReferenceRun < 0 || s.Maxwell.ReferenceRun >= len(s.Runs)) {
		return &model.ConfigurationError{
			Field:   "maxwell.reference_run",
			Message: fmt.Sprintf("run index %d out of range", s.Maxwell.ReferenceRun),
		}
	}

	roster := make(map[string]bool, len(s.Subjects))
	for _, subj := range s.Subjects {
		roster[subj] = true
	}
	for subj := range s.Bads {
		if !roster[subj] {
			return &model.ConfigurationError{
				Field:   "bads",
				Message: fmt.Sprintf("subject %s is not on the roster", subj),
			}
		}
	}
	for subj := range s.RunBads {
		if !roster[subj] {
			return &model.ConfigurationError{
				Field:   "run_bads",
				Message: fmt.Sprintf("subject %s is not on the roster", subj),
			}
		}
	}
	for subj := range s.RejectComps {
		if !roster[subj] {
			return &model.ConfigurationError{
				Field:   "reject_components",
				Message: fmt.Sprintf("subject %s is not on the roster", subj),
			}
		}
	}
	for _, subj := range s.ExcludeSubjects {
		if !roster[subj] {
			return &model.ConfigurationError{
				Field:   "exclude_subjects",
				Message: fmt.Sprintf("subject %s is not on the roster", subj),
			}
		}
	}

	return nil
}

func (s *Study) hasMEGChannels() bool {
	for _, ch := range s.ChannelTypes {
		switch ch {
		case "meg", "grad", "mag":
			return true
		}
	}
	return false
}
