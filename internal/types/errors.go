package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ConflictError is returned when a trigger arrives while another run
// holds the single-active-run slot. The operation is rejected, never queued.
type ConflictError struct {
	ActiveRunID uuid.UUID
	Status      RunStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a run is already active: %s (status %s)", e.ActiveRunID, e.Status)
}

// NotFoundError is returned for lookups of unknown identifiers.
type NotFoundError struct {
	Kind string // "run" or "scheduled item"
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// InvalidStateError is returned when an operation is attempted on an item
// whose current status does not permit it (e.g. cancelling a dispatched item).
type InvalidStateError struct {
	ItemID uuid.UUID
	Status ItemStatus
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s item %s in status %s", e.Op, e.ItemID, e.Status)
}

// DistributionFailure is a publish-time failure. It is a distinct failure
// domain from stage failures: it never rolls back or retries pipeline
// stages, only marks the scheduled item failed.
type DistributionFailure struct {
	Platform string
	Kind     FailureKind
	Message  string
	Cause    error
}

func (e *DistributionFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("publish to %s failed (%s): %s: %v", e.Platform, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("publish to %s failed (%s): %s", e.Platform, e.Kind, e.Message)
}

func (e *DistributionFailure) Unwrap() error {
	return e.Cause
}
