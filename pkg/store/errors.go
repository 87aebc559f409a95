package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by gateway operations.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a session with the same (provider,
	// cookie_hash) already exists.
	ErrDuplicate = errors.New("duplicate session")

	// ErrBadTransition indicates a status change outside the permitted
	// transition table.
	ErrBadTransition = errors.New("status transition not permitted")

	// ErrUnavailable indicates the store could not be reached after
	// retries. Callers treat this as a telemetry gap, not a request
	// failure: the proxy keeps serving traffic from the in-memory view.
	ErrUnavailable = errors.New("persistence unavailable")
)

// OpError wraps a failed gateway operation with its name for logs.
type OpError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *OpError) Unwrap() error {
	return e.Cause
}

// newOpError wraps cause, preserving sentinel identity for errors.Is.
func newOpError(op string, cause error) error {
	return &OpError{Op: op, Cause: cause}
}
