package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/me/megpipe/pkg/model"
)

// Snapshot is the immutable per-(step, WorkUnit) configuration handed to a
// step body. It is built fresh for every unit and never shared, so no
// worker can observe another unit's parameters.
type Snapshot struct {
	Step string         `json:"step"`
	Unit model.WorkUnit `json:"unit"`

	StudyName   string `json:"study_name"`
	MEGDir      string `json:"meg_dir"`
	SubjectsDir string `json:"subjects_dir"`

	Runs         []string `json:"runs"`
	ChannelTypes []string `json:"ch_types"`

	Filter   FilterParams   `json:"filter"`
	Maxwell  MaxwellParams  `json:"maxwell"`
	Resample ResampleParams `json:"resample"`
	Epochs   EpochParams    `json:"epochs"`
	ICA      ICAParams      `json:"ica"`
	Forward  ForwardParams  `json:"forward"`

	Reject map[string]float64 `json:"reject"`
	UseSSP bool               `json:"use_ssp"`
	UseICA bool               `json:"use_ica"`

	// BadChannels maps run name to the bad-channel list for this subject
	// (subject-wide and per-run overrides merged).
	BadChannels map[string][]string `json:"bad_channels"`
	// ExcludedComponents are this subject's manually rejected ICA components.
	ExcludedComponents ComponentExclusions `json:"excluded_components"`

	// Tool is the external tool binary override for this step; empty means
	// the step's default.
	Tool string `json:"tool"`
}

// Builder constructs configuration snapshots from a loaded study.
type Builder struct {
	study  *Study
	roster map[string]bool
}

// NewBuilder creates a snapshot builder for the study.
func NewBuilder(study *Study) *Builder {
	roster := make(map[string]bool, len(study.Subjects))
	for _, subj := range study.Subjects {
		roster[subj] = true
	}
	return &Builder{study: study, roster: roster}
}

// Build creates the snapshot for one (step, unit). It is a pure function
// of the loaded study configuration: it performs no I/O and copies every
// slice and map so later mutation of the study cannot leak into a unit
// already in flight.
func (b *Builder) Build(step string, unit model.WorkUnit) (*Snapshot, error) {
	if !b.roster[unit.Subject] {
		return nil, &model.ConfigurationError{
			Field:   "subjects",
			Message: fmt.Sprintf("subject %s is not on the roster", unit.Subject),
		}
	}
	if unit.Session != "" && !b.hasRun(unit.Session) {
		return nil, &model.ConfigurationError{
			Field:   "runs",
			Message: fmt.Sprintf("run %s is not configured for the study", unit.Session),
		}
	}

	s := b.study
	snap := &Snapshot{
		Step:         step,
		Unit:         unit,
		StudyName:    s.StudyName,
		MEGDir:       s.MEGDir,
		SubjectsDir:  s.SubjectsDir,
		Runs:         append([]string(nil), s.Runs...),
		ChannelTypes: append([]string(nil), s.ChannelTypes...),
		Filter:       s.Filter,
		Maxwell:      s.Maxwell,
		Resample:     s.Resample,
		Epochs:       copyEpochParams(s.Epochs),
		ICA:          s.ICA,
		Forward:      s.Forward,
		Reject:       copyFloatMap(s.Reject),
		UseSSP:       s.UseSSP,
		UseICA:       s.UseICA,
		BadChannels:  b.mergedBads(unit.Subject),
		Tool:         s.Tools[step],
	}

	if comps, ok := s.RejectComps[unit.Subject]; ok {
		snap.ExcludedComponents = ComponentExclusions{
			MEG: append([]int(nil), comps.MEG...),
			EEG: append([]int(nil), comps.EEG...),
		}
	}

	return snap, nil
}

func (b *Builder) hasRun(run string) bool {
	for _, r := range b.study.Runs {
		if r == run {
			return true
		}
	}
	return false
}

// mergedBads combines the subject-wide bad-channel list with any per-run
// overrides into a run-keyed map covering all configured runs.
func (b *Builder) mergedBads(subject string) map[string][]string {
	merged := make(map[string][]string, len(b.study.Runs))
	base := b.study.Bads[subject]
	for _, run := range b.study.Runs {
		bads := append([]string(nil), base...)
		if perRun, ok := b.study.RunBads[subject]; ok {
			bads = append(bads, perRun[run]...)
		}
		merged[run] = bads
	}
	return merged
}

func copyEpochParams(p EpochParams) EpochParams {
	out := p
	out.Baseline = append([]float64(nil), p.Baseline...)
	out.Conditions = append([]string(nil), p.Conditions...)
	if p.EventID != nil {
		out.EventID = make(map[string]int, len(p.EventID))
		for k, v := range p.EventID {
			out.EventID[k] = v
		}
	}
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Hash returns a stable hex digest of the snapshot content. Two snapshots
// with the same parameters hash identically; any parameter change produces
// a new digest. Used by the opt-in config-hash freshness check.
func (s *Snapshot) Hash() string {
	// encoding/json serializes map keys in sorted order, so the encoding
	// is canonical for equal content.
	data, err := json.Marshal(s)
	if err != nil {
		// Snapshot contains only plain data types; this cannot fail.
		panic(fmt.Sprintf("marshal snapshot: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SubjectMEGDir returns the per-subject MEG data directory.
func (s *Snapshot) SubjectMEGDir() string {
	return filepath.Join(s.MEGDir, s.Unit.Subject)
}

// MEGPath builds a per-subject artifact path following the study naming
// scheme <subject>_<study><extension>.fif.
func (s *Snapshot) MEGPath(extension string) string {
	name := fmt.Sprintf("%s_%s%s.fif", s.Unit.Subject, s.StudyName, extension)
	return filepath.Join(s.SubjectMEGDir(), name)
}

// RawExtension returns the raw-file extension for a run after the
// filtering step: maxwell-filtered runs use _sss_raw, otherwise _filt_raw.
func (s *Snapshot) RawExtension(run string) string {
	if s.Maxwell.Use {
		return run + "_sss_raw"
	}
	return run + "_filt_raw"
}

// TransPath returns the coregistration transform file for this subject.
func (s *Snapshot) TransPath() string {
	return filepath.Join(s.SubjectMEGDir(), s.Unit.Subject+"-trans.fif")
}

// BEMSolPath returns the BEM solution file under the anatomy root.
func (s *Snapshot) BEMSolPath() string {
	subj := s.Unit.Subject
	return filepath.Join(s.SubjectsDir, subj, "bem", subj+"-5120-bem-sol.fif")
}

// SourceSpacePath returns the source space file for the configured spacing.
func (s *Snapshot) SourceSpacePath() string {
	subj := s.Unit.Subject
	name := fmt.Sprintf("%s-%s-src.fif", subj, s.Forward.Spacing)
	return filepath.Join(s.SubjectsDir, subj, "bem", name)
}
