package types

import (
	"errors"
	"fmt"
	"time"
)

// AssertionFailure is raised by test logic when an expectation is not met.
// It is recoverable: the engine records it on the case's Result and
// continues with the next case.
type AssertionFailure struct {
	Message  string
	Expected string
	Actual   string
	Location SourceLocation
}

func (e *AssertionFailure) Error() string {
	if e.Expected != "" || e.Actual != "" {
		return fmt.Sprintf("assertion failed: %s expected <%s> but was <%s>", e.Message, e.Expected, e.Actual)
	}
	return fmt.Sprintf("assertion failed: %s", e.Message)
}

// IsAssertionFailure checks if the error is or wraps an AssertionFailure.
func IsAssertionFailure(err error) bool {
	var failure *AssertionFailure
	return err != nil && errors.As(err, &failure)
}

// AsyncTimeout is recorded when a deferred case receives no callback within
// its allotted window and declares no timeout continuation.
type AsyncTimeout struct {
	Location SourceLocation
	After    time.Duration
}

func (e *AsyncTimeout) Error() string {
	return fmt.Sprintf("async timeout: %s received no callback within %v", e.Location, e.After)
}

// IsAsyncTimeout checks if the error is or wraps an AsyncTimeout.
func IsAsyncTimeout(err error) bool {
	var timeout *AsyncTimeout
	return err != nil && errors.As(err, &timeout)
}

// UnhandledError wraps any raised value that is neither an assertion
// failure nor a recognized framework error, tagged with the source location
// of the case it was attributed to.
type UnhandledError struct {
	Err      error
	Location SourceLocation
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled error in %s: %v", e.Location, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *UnhandledError) Unwrap() error {
	return e.Err
}

// IsUnhandledError checks if the error is or wraps an UnhandledError.
func IsUnhandledError(err error) bool {
	var unhandled *UnhandledError
	return err != nil && errors.As(err, &unhandled)
}

// FrameworkError signals misuse of the engine itself, such as mutating its
// configuration while a run is active. It is raised synchronously to the
// caller of the offending call and never routed through result sinks.
type FrameworkError struct {
	Message string
}

func (e *FrameworkError) Error() string {
	return fmt.Sprintf("framework error: %s", e.Message)
}

// NewFrameworkError creates a new FrameworkError.
func NewFrameworkError(format string, args ...any) *FrameworkError {
	return &FrameworkError{Message: fmt.Sprintf(format, args...)}
}

// IsFrameworkError checks if the error is or wraps a FrameworkError.
func IsFrameworkError(err error) bool {
	var framework *FrameworkError
	return err != nil && errors.As(err, &framework)
}
