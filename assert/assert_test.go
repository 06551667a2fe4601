package assert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowtest/flowtest/types"
)

func TestHelpersReturnNilOnSuccess(t *testing.T) {
	require.Nil(t, True(true, "holds"))
	require.Nil(t, Equal("a", "a", "same"))
	require.Nil(t, NoError(nil, "no error"))
}

func TestHelpersReturnAssertionFailures(t *testing.T) {
	err := True(false, "condition holds")
	require.True(t, types.IsAssertionFailure(err))

	err = Equal([]int{1, 2}, []int{1, 3}, "slices match")
	require.True(t, types.IsAssertionFailure(err))
	var failure *types.AssertionFailure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, "[1 2]", failure.Expected)
	require.Equal(t, "[1 3]", failure.Actual)

	err = NoError(errors.New("boom"), "call succeeds")
	require.True(t, types.IsAssertionFailure(err))
}

func TestFailFormatsMessage(t *testing.T) {
	failure := Fail("expected %d widgets", 3)
	require.Equal(t, "expected 3 widgets", failure.Message)
	require.True(t, types.IsAssertionFailure(failure))
}

type foreignErr struct{ msg string }

func (f *foreignErr) Error() string { return f.msg }

func (f *foreignErr) FailureDetail() (expected, actual string) { return "want", "got" }

func TestAdaptForeignFailure(t *testing.T) {
	adapted := Adapt(&foreignErr{msg: "foreign mismatch"})
	var failure *types.AssertionFailure
	require.True(t, errors.As(adapted, &failure))
	require.Equal(t, "foreign mismatch", failure.Message)
	require.Equal(t, "want", failure.Expected)
	require.Equal(t, "got", failure.Actual)
}

func TestAdaptPassesOtherErrorsThrough(t *testing.T) {
	require.Nil(t, Adapt(nil))
	plain := errors.New("plain")
	require.Same(t, plain, Adapt(plain))
}
