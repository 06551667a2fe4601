package types

import (
	"fmt"
	"time"
)

// Status represents the possible terminal states of a test case
type Status string

const (
	StatusPending Status = ""
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusIgnore  Status = "ignore"
)

// SourceLocation identifies where a test case or hook is defined.
type SourceLocation struct {
	Class  string
	Method string
}

func (l SourceLocation) String() string {
	if l.Class == "" {
		return l.Method
	}
	return fmt.Sprintf("%s.%s", l.Class, l.Method)
}

// Result captures the outcome of a single test case. A Result transitions
// to exactly one terminal state; once terminal it is never rewritten.
type Result struct {
	Location SourceLocation
	Duration time.Duration

	status Status
	detail error
}

// NewResult creates a pending Result for the given source location.
func NewResult(location SourceLocation) *Result {
	return &Result{Location: location}
}

// Status returns the current state of the result. StatusPending means the
// case has not reached a terminal state yet.
func (r *Result) Status() Status {
	return r.status
}

// Detail returns the failure or error detail recorded at finish time.
// It is nil for passed, ignored and pending results.
func (r *Result) Detail() error {
	return r.detail
}

// Terminal reports whether the result has reached a terminal state.
func (r *Result) Terminal() bool {
	return r.status != StatusPending
}

// Finish moves the result to a terminal state. It returns false if the
// result is already terminal, in which case nothing is changed.
func (r *Result) Finish(status Status, detail error) bool {
	if r.status != StatusPending || status == StatusPending {
		return false
	}
	r.status = status
	r.detail = detail
	return true
}

func (r *Result) String() string {
	if r.detail != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Location, r.status, r.detail)
	}
	return fmt.Sprintf("%s: %s", r.Location, r.status)
}
