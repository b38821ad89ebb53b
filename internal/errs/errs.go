// Package errs defines the error taxonomy shared across the memory system.
package errs

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure classes.
var (
	// ErrValidation indicates malformed input, rejected before any
	// persistence takes place.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an operation referenced a missing memory,
	// entity, loop, or conversation id.
	ErrNotFound = errors.New("not found")

	// ErrExternal indicates a model-call failure, timeout, or unparsable
	// model response.
	ErrExternal = errors.New("external collaborator failed")

	// ErrState indicates an operation that is invalid in the current
	// handoff state, e.g. consuming a context when nothing is pending and
	// fallback is disabled.
	ErrState = errors.New("invalid state")
)

// OpError wraps an error with the name of the operation that failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("cortex: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Wrap returns err annotated with op, or nil if err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// Validationf builds a validation error with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found error with a formatted detail message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
