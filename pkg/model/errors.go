package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a step failure for the run log.
type ErrorKind string

const (
	ErrKindConfiguration ErrorKind = "CONFIGURATION"
	ErrKindMissingInput  ErrorKind = "MISSING_INPUT"
	ErrKindComputation   ErrorKind = "COMPUTATION"
	ErrKindOutputWrite   ErrorKind = "OUTPUT_WRITE"
	ErrKindUnclassified  ErrorKind = "UNCLASSIFIED"
)

// ConfigurationError reports a malformed study configuration or a
// per-subject override that cannot be applied (for example an override
// keyed by a subject that is not on the roster).
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// MissingInputError reports a declared input artifact absent at execution time.
type MissingInputError struct {
	Name string
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %q: %s", e.Name, e.Path)
}

// ComputationError reports a failure inside the step body's computation,
// typically a non-zero exit from the external processing tool.
type ComputationError struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *ComputationError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("step %s: %v (exit code %d)", e.Step, e.Err, e.ExitCode)
	}
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// OutputWriteError reports a declared output artifact that could not be persisted.
type OutputWriteError struct {
	Name string
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("write output %q to %s: %v", e.Name, e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// Classify maps an error raised by a step body to its ErrorKind.
// Anything that does not match the taxonomy is UNCLASSIFIED; the raw
// message is retained on the outcome record for diagnosis.
func Classify(err error) ErrorKind {
	var cfgErr *ConfigurationError
	var missErr *MissingInputError
	var compErr *ComputationError
	var outErr *OutputWriteError

	switch {
	case errors.As(err, &cfgErr):
		return ErrKindConfiguration
	case errors.As(err, &missErr):
		return ErrKindMissingInput
	case errors.As(err, &outErr):
		return ErrKindOutputWrite
	case errors.As(err, &compErr):
		return ErrKindComputation
	default:
		return ErrKindUnclassified
	}
}
