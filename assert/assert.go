// Package assert provides the failure representation the engine classifies
// on, plus a small set of helpers for building test cases. Helpers return an
// error rather than aborting, so a test body raises by returning the value.
package assert

import (
	"fmt"
	"reflect"

	"github.com/flowtest/flowtest/types"
)

// Fail returns an assertion failure with the given message.
func Fail(format string, args ...any) *types.AssertionFailure {
	return &types.AssertionFailure{Message: fmt.Sprintf(format, args...)}
}

// True fails unless the condition holds.
func True(condition bool, msg string) error {
	if condition {
		return nil
	}
	return &types.AssertionFailure{
		Message:  msg,
		Expected: "true",
		Actual:   "false",
	}
}

// Equal fails unless expected and actual are deeply equal.
func Equal(expected, actual any, msg string) error {
	if reflect.DeepEqual(expected, actual) {
		return nil
	}
	return &types.AssertionFailure{
		Message:  msg,
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", actual),
	}
}

// NoError fails when err is non-nil.
func NoError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &types.AssertionFailure{
		Message:  msg,
		Expected: "no error",
		Actual:   err.Error(),
	}
}

// ForeignFailure is the shape foreign assertion libraries expose. Any error
// implementing it is adapted into the local failure type before
// classification, so the engine only ever matches one assertion type.
type ForeignFailure interface {
	error
	FailureDetail() (expected, actual string)
}

// Adapt re-shapes a foreign assertion failure into the local
// AssertionFailure. Errors that are not foreign failures are returned
// unchanged.
func Adapt(err error) error {
	if err == nil {
		return nil
	}
	if foreign, ok := err.(ForeignFailure); ok {
		expected, actual := foreign.FailureDetail()
		return &types.AssertionFailure{
			Message:  foreign.Error(),
			Expected: expected,
			Actual:   actual,
		}
	}
	return err
}
