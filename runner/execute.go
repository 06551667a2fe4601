package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/flowtest/flowtest/assert"
	"github.com/flowtest/flowtest/registry"
	"github.com/flowtest/flowtest/reporting"
	"github.com/flowtest/flowtest/types"
)

// All methods in this file run with the engine lock held.

// execute is the traversal driver. It iterates suites from the stored suite
// index, activates one class at a time, and returns as soon as async work
// is pending; resolution callbacks re-enter it from the top, so a single
// callback can cascade through further classes and suites synchronously.
func (e *Engine) execute() {
	s := e.session
	if len(s.pending) > 0 {
		return
	}
	for s.suiteIndex < len(s.suites) {
		suite := s.suites[s.suiteIndex]
		for s.classIndex < len(suite.Classes) {
			if s.iter == nil {
				s.iter = registry.NewCaseIterator(suite.Classes[s.classIndex], s.debug)
				e.log.Debug("Activating test class",
					"run_id", s.runID, "suite", suite.Name, "class", s.iter.ClassName())
				e.setCurrentClass(s.iter.ClassName())
				s.caseStart = time.Now()
				// Class hooks are unconditional: they run even when the
				// case list is empty. A before-class failure lands on the
				// first runnable case's Result; ignored cases are skipped
				// so their records stay Ignored.
				e.runHooks(s.iter.BeforeClass(), s.iter.PeekRunnable())
			}
			e.executeTestCases()
			if len(s.pending) > 0 {
				return // suspended; after-class is deferred, not skipped
			}
			e.runHooks(s.iter.AfterClass(), s.iter.Current())
			s.iter = nil
			s.currentCase = nil
			s.classIndex++
		}
		s.classIndex = 0
		s.suiteIndex++
	}
	e.finish()
}

// executeTestCases drives the active class's cases. It breaks out of the
// loop as soon as a case suspends on async work; the deferred after-each
// hooks run on resolution.
func (e *Engine) executeTestCases() {
	s := e.session
	it := s.iter
	for it.HasNext() {
		c := it.Next()
		s.currentCase = c

		if c.Ignore {
			s.ignored++
			c.Result.Finish(types.StatusIgnore, nil)
			e.reportIgnore(c.Result)
			continue
		}

		s.total++
		if c.Result.Terminal() {
			// Finished early by a before-class failure attribution; it
			// was already counted and reported when classified.
			continue
		}

		s.caseStart = time.Now()
		if !e.runHooks(it.BeforeEach(), c) {
			// The case is terminal; teardown still runs.
			e.runHooks(it.AfterEach(), c)
			continue
		}
		e.executeTestCase(c)
		if len(s.pending) > 0 {
			e.log.Debug("Breaking out of case loop on pending async work",
				"run_id", s.runID, "case", c.Result.Location, "pending", len(s.pending))
			return
		}
		e.runHooks(it.AfterEach(), c)
	}
}

// executeTestCase performs one dynamic invocation against the case's
// current target. The target is rebound to a continuation when an async
// handle resolves, so repeated invocations land on the same Result record.
// A handle resolved on the invocation's own stack is consumed here and its
// continuation runs immediately, without suspending the case.
func (e *Engine) executeTestCase(c *types.TestCase) {
	s := e.session
	s.currentCase = c

	for {
		handle := &sessionHandle{engine: e, sess: s, tc: c}
		_, span := e.tracer.Start(s.ctx, "case "+c.Result.Location.String())
		err := e.invoke(c.Target, handle, c.Args)
		span.End()

		if err != nil {
			// Siblings must be withdrawn before the failure is classified
			// and reported, so no sink observes a report for a case whose
			// async work is still live.
			e.cancelPending()
			e.classify(c, err)
			return
		}
		next := e.activatePending()
		if next == nil {
			break
		}
		c.Target = next.Success()
	}
	if len(s.pending) > 0 {
		return // suspended; no terminal state yet
	}
	if !c.Result.Finish(types.StatusPass, nil) {
		e.log.Error("Case completed after its result was already terminal",
			"run_id", s.runID, "case", c.Result.Location)
		return
	}
	c.Result.Duration = time.Since(s.caseStart)
	s.passed++
	e.reportPass(c.Result)
}

// invoke performs the dynamic invocation, converting panics into errors at
// the innermost boundary so nothing escapes to the traversal driver.
func (e *Engine) invoke(target types.Invocable, s types.Session, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = rerr
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return target.Invoke(s, args)
}

// runHooks invokes lifecycle hooks in order, attributing any raised error
// to the given case's Result via the normal classification path. It returns
// false as soon as a hook raises. A nil case (a class with no runnable
// cases) leaves the error logged only.
func (e *Engine) runHooks(hooks []types.Hook, c *types.TestCase) bool {
	s := e.session
	for _, hook := range hooks {
		handle := &sessionHandle{engine: e, sess: s, tc: c}
		err := e.invoke(hook.Target, handle, nil)
		for err == nil {
			next := e.activatePending()
			if next == nil {
				break
			}
			err = e.invoke(next.Success(), handle, nil)
		}
		if err == nil {
			continue
		}
		e.cancelPending()
		if c == nil {
			e.log.Error("Lifecycle hook failed with no case to attribute to",
				"run_id", s.runID, "hook", hook.Name, "err", err)
			return false
		}
		e.classify(c, err)
		return false
	}
	return true
}

// classify routes a raised error to the case's Result: assertion failures
// (foreign ones adapted first) become Failed, everything else becomes
// Errored, wrapped as an UnhandledError unless it is already a recognized
// framework error. A Result that is already terminal is never rewritten.
func (e *Engine) classify(c *types.TestCase, raised error) {
	s := e.session
	raised = assert.Adapt(raised)
	duration := time.Since(s.caseStart)

	var failure *types.AssertionFailure
	if errors.As(raised, &failure) {
		if failure.Location == (types.SourceLocation{}) {
			failure.Location = c.Result.Location
		}
		if !c.Result.Finish(types.StatusFail, raised) {
			e.log.Error("Dropping assertion failure for terminal result",
				"run_id", s.runID, "case", c.Result.Location, "err", raised)
			return
		}
		c.Result.Duration = duration
		s.failed++
		e.reportFail(c.Result)
		return
	}

	if !types.IsAsyncTimeout(raised) && !types.IsUnhandledError(raised) && !types.IsFrameworkError(raised) {
		raised = &types.UnhandledError{Err: raised, Location: c.Result.Location}
	}
	if !c.Result.Finish(types.StatusError, raised) {
		e.log.Error("Dropping error for terminal result",
			"run_id", s.runID, "case", c.Result.Location, "err", raised)
		return
	}
	c.Result.Duration = duration
	s.errored++
	e.reportError(c.Result)
}

// finish computes the final statistics and fans them out to every sink,
// arming the completion barrier.
func (e *Engine) finish() {
	s := e.session
	stats := s.stats(time.Since(s.startTime))
	e.log.Info("Run complete",
		"run_id", s.runID,
		"total", stats.Total,
		"passed", stats.Passed,
		"failed", stats.Failed,
		"errored", stats.Errored,
		"ignored", stats.Ignored,
		"elapsed", stats.Elapsed)
	s.span.End()

	s.sinkCount = int32(len(e.sinks))
	s.finished.Store(true)
	if s.sinkCount == 0 {
		e.scheduleCompletion(s)
		return
	}
	for _, sink := range e.sinks {
		if adv, ok := sink.(reporting.AdvancedSink); ok {
			adv.SetCurrentTestClass("")
		}
		sink.ReportFinalStatistics(stats)
	}
}

func (e *Engine) setCurrentClass(name string) {
	for _, sink := range e.sinks {
		if adv, ok := sink.(reporting.AdvancedSink); ok {
			adv.SetCurrentTestClass(name)
		}
	}
}

func (e *Engine) reportPass(r *types.Result) {
	for _, sink := range e.sinks {
		sink.AddPass(r)
	}
}

func (e *Engine) reportFail(r *types.Result) {
	for _, sink := range e.sinks {
		sink.AddFail(r)
	}
}

func (e *Engine) reportError(r *types.Result) {
	for _, sink := range e.sinks {
		sink.AddError(r)
	}
}

func (e *Engine) reportIgnore(r *types.Result) {
	for _, sink := range e.sinks {
		sink.AddIgnore(r)
	}
}
