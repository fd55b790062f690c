package catalog

import (
	"errors"
	"fmt"
)

// ErrNotVolatile is returned when a cache operation targets an endpoint the
// catalog does not mark volatile.
var ErrNotVolatile = errors.New("endpoint is not volatile")

// ErrNotFound is returned when the catalog has no record for a file identity.
var ErrNotFound = errors.New("file not found in catalog")

// ErrMismatch is returned when a file's declared size or checksum differs
// from the catalog's record.
var ErrMismatch = errors.New("file metadata mismatch")

// ValidationError is a semantic precondition violation: the payload is
// structurally sound but contradicts the catalog. It names the offending
// identity (an endpoint or a scope:name) and wraps the underlying cause.
type ValidationError struct {
	// Identity is the endpoint or scope:name the violation concerns.
	Identity string
	// Detail is a human-readable account of what was violated.
	Detail string
	// Cause is the underlying error, one of the package sentinels or a
	// catalog lookup failure.
	Cause error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Identity, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Identity, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error { return e.Cause }
