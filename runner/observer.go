package runner

import (
	"time"

	"github.com/flowtest/flowtest/async"
	"github.com/flowtest/flowtest/types"
)

// OnAsyncCreated adds a newly registered handle to the pending set. It is
// invoked synchronously on the engine's own call stack, from inside a hook
// or test body, so the engine lock is already held by this goroutine and
// must not be taken again.
func (e *Engine) OnAsyncCreated(h *async.Handle) {
	s := e.session
	if s == nil || s.finished.Load() {
		e.log.Error("Async handle created outside an active run, cancelling")
		h.Cancel()
		return
	}
	s.pending[h] = struct{}{}
}

// OnAsyncSuccess handles a resolved handle: it rebinds the current case to
// the handle's success continuation and invokes it against the same Result
// record, then resumes traversal if nothing is pending. Resolving a handle
// that is no longer in the pending set is a no-op.
func (e *Engine) OnAsyncSuccess(h *async.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if s == nil {
		return
	}
	if _, ok := s.pending[h]; !ok {
		return
	}
	delete(s.pending, h)

	c := s.currentCase
	if c == nil {
		e.log.Error("Async success with no current case", "run_id", s.runID)
		return
	}
	c.Target = h.Success()
	e.executeTestCase(c)
	e.resume()
}

// OnAsyncTimeout handles an expired handle. A handle that declares a
// timeout continuation is re-invoked exactly like a success; otherwise the
// remaining pending handles are cancelled and the case is recorded as
// errored with an AsyncTimeout detail.
func (e *Engine) OnAsyncTimeout(h *async.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if s == nil {
		return
	}
	if _, ok := s.pending[h]; !ok {
		return
	}
	delete(s.pending, h)

	c := s.currentCase
	if c == nil {
		e.log.Error("Async timeout with no current case", "run_id", s.runID)
		return
	}
	if handler := h.TimeoutHandler(); handler != nil {
		c.Target = handler
		e.executeTestCase(c)
	} else {
		e.cancelPending()
		e.classify(c, &types.AsyncTimeout{Location: c.Result.Location, After: h.Timeout()})
	}
	e.resume()
}

// activatePending arms the timers of handles registered by the invocation
// that just returned. A handle that was resolved before going live is
// consumed from the pending set and returned, so the caller runs its
// success continuation on the current stack instead of waiting for a
// resolution callback that has already happened.
func (e *Engine) activatePending() *async.Handle {
	s := e.session
	for h := range s.pending {
		if h.Activate() {
			delete(s.pending, h)
			return h
		}
	}
	return nil
}

// cancelPending withdraws every pending handle. Cancellation produces no
// result of its own; the triggering failure's classification is
// authoritative.
func (e *Engine) cancelPending() {
	s := e.session
	for h := range s.pending {
		delete(s.pending, h)
		h.Cancel()
	}
}

// resume runs the deferred after-each hooks for the suspended case and
// re-enters the traversal driver once no async work remains pending.
func (e *Engine) resume() {
	s := e.session
	if s == nil || len(s.pending) > 0 {
		return
	}
	if s.iter != nil && s.currentCase != nil {
		e.runHooks(s.iter.AfterEach(), s.currentCase)
	}
	e.execute()
}

// acknowledge records one sink's acknowledgment of the final summary. When
// the count reaches the number of registered sinks the completion callback
// is scheduled. Acknowledgments arriving before the summary was reported,
// or for a session that is no longer active, are ignored.
func (e *Engine) acknowledge(s *session) {
	if s == nil || !s.finished.Load() {
		return
	}
	if s.acks.Add(1) != s.sinkCount {
		return
	}
	e.scheduleCompletion(s)
}

func (e *Engine) scheduleCompletion(s *session) {
	time.AfterFunc(e.completionDelay, func() {
		e.complete(s)
	})
}

// complete tears the session down: overall success is pass count == total
// count, the completion callback (if any) fires with it, and the engine
// returns to idle. The callback runs outside the engine lock so it may
// immediately start another run.
func (e *Engine) complete(s *session) {
	e.mu.Lock()
	if e.session != s {
		e.mu.Unlock()
		return
	}
	success := s.passed == s.total
	cb := e.completion
	e.session = nil
	e.active.Store(nil)
	e.mu.Unlock()

	e.log.Debug("Session complete", "run_id", s.runID, "success", success)
	if cb != nil {
		cb(success)
	}
	close(s.done)
}
