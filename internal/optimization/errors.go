package optimization

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify an error returned by any package
// under internal/optimization.
var (
	// ErrAllocation reports that a matrix, vector or scratch buffer could not
	// be obtained. It is fatal for the whole run.
	ErrAllocation = NewError("allocation failed")
	// ErrInvalidConfig reports a problem or run configuration that cannot be used.
	ErrInvalidConfig = NewError("invalid configuration")
	// ErrDimensionMismatch reports vectors or matrices of inconsistent shape.
	ErrDimensionMismatch = NewError("dimension mismatch")
	// ErrEmptyPartition reports a worker or reduction without any candidate.
	ErrEmptyPartition = NewError("empty partition")
	// ErrAborted reports that a worker stopped because a peer failed.
	ErrAborted = NewError("run aborted")
)

// Error is an optimization error carrying the operation and component in
// which it happened.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the operation on a freshly built error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the component on a freshly built error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates an error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// WrapError wraps err with a message. If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps err with a formatted message. If err is nil, WrapErrorf
// returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsOptimizationError reports whether err is, or wraps, an *Error and returns
// the outermost one.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
