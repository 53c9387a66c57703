package types

import "fmt"

// FailureKind classifies a producer-reported failure.
type FailureKind string

const (
	// FailureTransient marks a failure that is worth retrying (network
	// timeouts, rate limits, flaky upstreams).
	FailureTransient FailureKind = "transient"
	// FailurePermanent marks a failure that retrying cannot fix
	// (bad input, rejected content, schema violations).
	FailurePermanent FailureKind = "permanent"
)

// StageFailure is the error type producers return to report a failed
// stage invocation. The kind decides whether the coordinator retries.
type StageFailure struct {
	Stage   string
	Kind    FailureKind
	Message string
	Cause   error
}

func (e *StageFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s stage failed (%s): %s: %v", e.Stage, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s stage failed (%s): %s", e.Stage, e.Kind, e.Message)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the coordinator may re-invoke the stage.
func (e *StageFailure) Retryable() bool {
	return e.Kind == FailureTransient
}

// Transient builds a retryable stage failure.
func Transient(stage, message string, cause error) *StageFailure {
	return &StageFailure{Stage: stage, Kind: FailureTransient, Message: message, Cause: cause}
}

// Permanent builds a non-retryable stage failure.
func Permanent(stage, message string, cause error) *StageFailure {
	return &StageFailure{Stage: stage, Kind: FailurePermanent, Message: message, Cause: cause}
}
