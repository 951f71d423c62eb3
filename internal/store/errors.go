package store

import (
	"errors"
	"fmt"
)

// NotFoundError reports store-level absence of a document. Probes treat it
// as a normal outcome, never as a failure.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.ID)
}

// ConflictError reports a revision mismatch: the caller's rev does not match
// the stored revision, or a create collided with an existing document. The
// store's per-document revision check is what prevents two writers from
// completing the same write concurrently.
type ConflictError struct {
	ID  string
	Rev string
}

func (e *ConflictError) Error() string {
	if e.Rev == "" {
		return fmt.Sprintf("document conflict: %s already exists", e.ID)
	}
	return fmt.Sprintf("document conflict: %s at rev %s", e.ID, e.Rev)
}

// StoreError is any other backend failure: transport, malformed response,
// corrupt row. It is always surfaced and never reinterpreted as absence -
// conflating the two would silently corrupt the constraint guarantees built
// on probe results.
type StoreError struct {
	Op     string
	Reason string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("store %s: %s", e.Op, e.Reason)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a store-level absence.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a revision conflict.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
