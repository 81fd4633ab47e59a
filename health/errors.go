package health

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCheckTimeout indicates a check did not settle within its timeout.
	// Every *TimeoutError matches it under errors.Is.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked indicates a check function panicked.
	ErrCheckPanicked = errors.New("health: check panicked")

	// ErrNilCheckFunc indicates a check was defined without a function.
	ErrNilCheckFunc = errors.New("health: check has no function")

	// ErrCheckNotFound indicates a named check is not registered.
	ErrCheckNotFound = errors.New("health: check not found")

	// ErrNoResult indicates the runner left a result slot empty. It is a
	// programming error and is raised as a panic, never returned.
	ErrNoResult = errors.New("health: runner produced no result")
)

// TimeoutError is recorded when a check does not complete before its timeout.
type TimeoutError struct {
	Timeout time.Duration
}

// Error returns the message that ends up in the check result.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Check did not complete before timeout of %dms", e.Timeout.Milliseconds())
}

// Is reports whether target is ErrCheckTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrCheckTimeout
}

// PanicError wraps a value recovered from a panicking check function.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("check panicked: %v", e.Value)
}

// Is reports whether target is ErrCheckPanicked.
func (e *PanicError) Is(target error) bool {
	return target == ErrCheckPanicked
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
