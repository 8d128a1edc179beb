package models

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing required field on an
// inbound transaction. The run is not created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a lookup against a nonexistent run or discrepancy.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidStateError reports an operation against a record whose state does
// not permit it, such as re-resolving a discrepancy or re-running a key
// that is still in progress.
type InvalidStateError struct {
	Entity string
	ID     string
	State  string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %q", e.Op, e.Entity, e.ID, e.State)
}

// InvariantViolationError reports that the aggregator's completion check
// failed. This is a defect: the run is aborted as failed and its output is
// quarantined, never silently corrected.
type InvariantViolationError struct {
	RunID   string
	Details string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("run %s violated reconciliation invariant: %s", e.RunID, e.Details)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsInvalidState(err error) bool {
	var is *InvalidStateError
	return errors.As(err, &is)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
