// Package model defines the shared data model for megpipe: work units,
// artifact references, outcome records, and the error taxonomy used by
// the batch orchestrator.
package model

// WorkUnit identifies one (subject, session) pair processed by a step.
// Session is empty for single-session studies. A WorkUnit is immutable
// once enumerated and is consumed exactly once per batch run.
type WorkUnit struct {
	Subject string `json:"subject"`
	Session string `json:"session,omitempty"`
}

// Key returns a stable identifier, "subject" or "subject/session".
func (u WorkUnit) Key() string {
	if u.Session == "" {
		return u.Subject
	}
	return u.Subject + "/" + u.Session
}

func (u WorkUnit) String() string {
	return u.Key()
}
