package reskit

import (
	"errors"
	"fmt"
)

// Common resource errors
var (
	ErrNotExist      = errors.New("resource does not exist")
	ErrPermission    = errors.New("permission denied")
	ErrClosed        = errors.New("stream already closed")
	ErrBadStatus     = errors.New("unexpected HTTP status")
	ErrProbeFailed   = errors.New("resource probe failed")
	ErrNoOpener      = errors.New("no opener registered")
	ErrNotSupported  = errors.New("operation not supported")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ResourceError records an error and the operation and resource identifier
// that caused it
type ResourceError struct {
	Op       string
	Resource string
	Err      error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

// Unwrap returns the underlying error
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError wraps err with the operation and resource identifier.
// Returns nil if err is nil.
func NewResourceError(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{Op: op, Resource: resource, Err: err}
}

// IsNotExist reports whether an error indicates that a resource
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsBadStatus reports whether an error was caused by a non-2xx HTTP
// response
func IsBadStatus(err error) bool {
	return errors.Is(err, ErrBadStatus)
}
