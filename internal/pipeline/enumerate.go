package pipeline

import (
	"github.com/me/megpipe/pkg/model"
)

// EnumerateUnits produces the work units for a step: the cross product of
// the subject roster and the session list, minus excluded subjects, in
// roster order so batch logs are reproducible and diffable across runs.
// An empty or nil session list yields one session-less unit per subject.
func EnumerateUnits(subjects, sessions, exclusions []string) ([]model.WorkUnit, error) {
	excluded := make(map[string]bool, len(exclusions))
	for _, subj := range exclusions {
		excluded[subj] = true
	}

	if len(sessions) == 0 {
		sessions = []string{""}
	}

	var units []model.WorkUnit
	for _, subj := range subjects {
		if excluded[subj] {
			continue
		}
		for _, sess := range sessions {
			units = append(units, model.WorkUnit{Subject: subj, Session: sess})
		}
	}

	if len(units) == 0 {
		return nil, &model.ConfigurationError{
			Field:   "subjects",
			Message: "no work units left after exclusions",
		}
	}
	return units, nil
}
