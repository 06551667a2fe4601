package types

import "time"

// AsyncHandle is the token a test body receives when it defers its
// completion. Resolving an already-resolved or cancelled handle is a no-op.
type AsyncHandle interface {
	// Resolve signals that the deferred work finished successfully. The
	// engine re-invokes the case with the handle's success continuation.
	Resolve()
	// Cancel withdraws the handle without producing a result.
	Cancel()
}

// Session is the handle the engine passes into every hook and test body.
// It is the only way test logic may interact with the engine mid-run.
type Session interface {
	// DeferCompletion registers a deferred completion for the current
	// case. The success continuation runs, against the same Result
	// record, when the returned handle resolves. If the handle does not
	// resolve within timeout the case is recorded as errored.
	DeferCompletion(success Invocable, timeout time.Duration) AsyncHandle

	// DeferCompletionWithTimeoutHandler is DeferCompletion with a
	// continuation that runs instead of the timeout error when the
	// window elapses.
	DeferCompletionWithTimeoutHandler(success, onTimeout Invocable, timeout time.Duration) AsyncHandle

	// RunID returns the identifier of the active run.
	RunID() string
}

// Invocable is the uniform dynamic-invocation contract for hooks, test
// bodies and async continuations.
type Invocable interface {
	Invoke(s Session, args []any) error
}

// InvocableFunc adapts a plain function to the Invocable contract.
type InvocableFunc func(s Session, args []any) error

func (f InvocableFunc) Invoke(s Session, args []any) error {
	return f(s, args)
}

// Hook is a named lifecycle method run around classes or cases.
type Hook struct {
	Name   string
	Target Invocable
}

// TestCase is one test method plus its arguments and outcome record.
type TestCase struct {
	Name      string
	Target    Invocable
	Args      []any
	Ignore    bool
	DebugOnly bool
	Result    *Result
}

// ClassDescriptor identifies a class under test: its lifecycle hooks and
// its ordered case list. Descriptors are immutable; the engine instantiates
// a fresh copy (with fresh Result records) per run.
type ClassDescriptor struct {
	Name        string
	BeforeClass []Hook
	AfterClass  []Hook
	BeforeEach  []Hook
	AfterEach   []Hook
	Cases       []TestCase
}

// Suite is an ordered collection of test classes run together.
type Suite struct {
	Name        string
	Description string
	Classes     []*ClassDescriptor
}
