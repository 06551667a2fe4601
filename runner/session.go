package runner

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flowtest/flowtest/async"
	"github.com/flowtest/flowtest/registry"
	"github.com/flowtest/flowtest/types"
)

// session is the per-run state. Exactly one may be active at a time. It is
// owned by the engine: hooks and test bodies only reach it through the
// session handle passed into every invocation.
type session struct {
	runID string
	ctx   context.Context
	span  trace.Span
	debug bool

	suites     []*types.Suite
	suiteIndex int
	classIndex int
	iter       *registry.CaseIterator

	currentCase *types.TestCase
	startTime   time.Time
	caseStart   time.Time

	total   int
	passed  int
	failed  int
	errored int
	ignored int

	pending map[*async.Handle]struct{}

	// barrier state; atomics because acknowledgments arrive on the sink
	// fan-out path while the engine lock is held.
	finished  atomic.Bool
	sinkCount int32
	acks      atomic.Int32

	done chan struct{}
}

func (s *session) stats(elapsed time.Duration) types.Stats {
	return types.Stats{
		Total:   s.total,
		Passed:  s.passed,
		Failed:  s.failed,
		Errored: s.errored,
		Ignored: s.ignored,
		Elapsed: elapsed,
	}
}

// sessionHandle is the types.Session implementation handed into each hook
// and test body. It pins the session and case it was issued for, so a
// handle leaked across invocations cannot misattribute async work.
type sessionHandle struct {
	engine *Engine
	sess   *session
	tc     *types.TestCase
}

var _ types.Session = (*sessionHandle)(nil)

func (h *sessionHandle) RunID() string {
	return h.sess.runID
}

func (h *sessionHandle) DeferCompletion(success types.Invocable, timeout time.Duration) types.AsyncHandle {
	return h.DeferCompletionWithTimeoutHandler(success, nil, timeout)
}

// DeferCompletionWithTimeoutHandler registers a deferred completion with
// the engine's async factory. It must be called from inside the invocation
// the handle was issued for.
func (h *sessionHandle) DeferCompletionWithTimeoutHandler(success, onTimeout types.Invocable, timeout time.Duration) types.AsyncHandle {
	e := h.engine
	if e.session != h.sess || (h.tc != nil && h.sess.currentCase != h.tc) {
		e.log.Error("Deferred completion requested from a stale invocation, ignoring",
			"run_id", h.sess.runID)
		return inertHandle{}
	}
	return e.factory.Create(success, onTimeout, timeout)
}

// inertHandle is returned for stale registrations; it never resolves.
type inertHandle struct{}

func (inertHandle) Resolve() {}
func (inertHandle) Cancel()  {}
