package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowassert "github.com/flowtest/flowtest/assert"
	"github.com/flowtest/flowtest/reporting"
	"github.com/flowtest/flowtest/types"
)

func newTestEngine(t *testing.T) (*Engine, *reporting.Collector) {
	t.Helper()
	e, err := New(Config{CompletionDelay: time.Millisecond})
	require.NoError(t, err)
	collector := reporting.NewCollector()
	require.NoError(t, e.RegisterSink(collector))
	return e, collector
}

func waitForRun(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

func passingCase(name string) types.TestCase {
	return types.TestCase{
		Name: name,
		Target: types.InvocableFunc(func(s types.Session, args []any) error {
			return nil
		}),
	}
}

func failingCase(name string) types.TestCase {
	return types.TestCase{
		Name: name,
		Target: types.InvocableFunc(func(s types.Session, args []any) error {
			return flowassert.Equal(1, 2, "one equals two")
		}),
	}
}

func erroringCase(name string) types.TestCase {
	return types.TestCase{
		Name: name,
		Target: types.InvocableFunc(func(s types.Session, args []any) error {
			return errors.New("boom")
		}),
	}
}

func suiteOf(name string, classes ...*types.ClassDescriptor) *types.Suite {
	return &types.Suite{Name: name, Classes: classes}
}

func TestRunPassAndFailCounts(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name:  "Sample",
		Cases: []types.TestCase{passingCase("testPass"), failingCase("testFail")},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 2, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Passed)
	assert.Equal(t, 1, collector.Stats.Failed)
	assert.Equal(t, 0, collector.Stats.Errored)
	assert.Equal(t, 0, collector.Stats.Ignored)
	assert.Equal(t, 1, collector.Reports)

	require.Len(t, collector.Results, 2)
	assert.Equal(t, types.StatusPass, collector.Results[0].Status())
	assert.Equal(t, types.StatusFail, collector.Results[1].Status())
	assert.True(t, types.IsAssertionFailure(collector.Results[1].Detail()))
}

func TestRunErroringCase(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{Name: "Sample", Cases: []types.TestCase{erroringCase("testBoom")}}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Errored)
	require.Len(t, collector.Results, 1)
	assert.Equal(t, types.StatusError, collector.Results[0].Status())
	assert.True(t, types.IsUnhandledError(collector.Results[0].Detail()))
}

func TestPanicIsClassifiedAsError(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name: "Sample",
		Cases: []types.TestCase{{
			Name: "testPanics",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				panic("kaboom")
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Stats.Errored)
	assert.True(t, types.IsUnhandledError(collector.Results[0].Detail()))
}

func TestIgnoredCaseOnly(t *testing.T) {
	e, collector := newTestEngine(t)

	beforeEach := 0
	class := &types.ClassDescriptor{
		Name: "Sample",
		BeforeEach: []types.Hook{{Name: "before", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			beforeEach++
			return nil
		})}},
		Cases: []types.TestCase{{
			Name:   "testIgnored",
			Ignore: true,
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				t.Error("ignored case must not run")
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 0, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Ignored)
	assert.Equal(t, 0, beforeEach, "ignored cases never run hooks")
	require.Len(t, collector.Results, 1)
	assert.Equal(t, types.StatusIgnore, collector.Results[0].Status())
}

func TestEmptyClassStillRunsClassHooks(t *testing.T) {
	e, collector := newTestEngine(t)

	var events []string
	hook := func(name string) types.Hook {
		return types.Hook{Name: name, Target: types.InvocableFunc(func(s types.Session, args []any) error {
			events = append(events, name)
			return nil
		})}
	}
	class := &types.ClassDescriptor{
		Name:        "Empty",
		BeforeClass: []types.Hook{hook("beforeClass")},
		AfterClass:  []types.Hook{hook("afterClass")},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, []string{"beforeClass", "afterClass"}, events)
	assert.Equal(t, 0, collector.Stats.Total)
	assert.Equal(t, 1, collector.Reports)
}

func TestHookOrderAroundCase(t *testing.T) {
	e, _ := newTestEngine(t)

	var events []string
	record := func(name string) types.InvocableFunc {
		return func(s types.Session, args []any) error {
			events = append(events, name)
			return nil
		}
	}
	class := &types.ClassDescriptor{
		Name:        "Ordered",
		BeforeClass: []types.Hook{{Name: "beforeClass", Target: record("beforeClass")}},
		AfterClass:  []types.Hook{{Name: "afterClass", Target: record("afterClass")}},
		BeforeEach:  []types.Hook{{Name: "beforeEach", Target: record("beforeEach")}},
		AfterEach:   []types.Hook{{Name: "afterEach", Target: record("afterEach")}},
		Cases:       []types.TestCase{{Name: "testBody", Target: record("body")}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, []string{"beforeClass", "beforeEach", "body", "afterEach", "afterClass"}, events)
}

func TestAsyncSuccessResumption(t *testing.T) {
	e, collector := newTestEngine(t)

	afterEach := 0
	var handle types.AsyncHandle
	class := &types.ClassDescriptor{
		Name: "Async",
		AfterEach: []types.Hook{{Name: "afterEach", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			afterEach++
			return nil
		})}},
		Cases: []types.TestCase{{
			Name: "testDeferred",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				handle = s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					return nil
				}), time.Minute)
				return nil
			}),
		}},
	}

	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	assert.True(t, e.Running(), "run suspends on the pending handle")
	assert.Equal(t, 0, afterEach, "after-each is deferred across suspension")
	assert.Empty(t, collector.Results)

	handle.Resolve()
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Passed)
	assert.Equal(t, 1, afterEach, "after-each runs exactly once, after the callback")
	require.Len(t, collector.Results, 1)
	assert.Equal(t, types.StatusPass, collector.Results[0].Status())
}

func TestAsyncTimeoutCancelsSiblings(t *testing.T) {
	e, collector := newTestEngine(t)

	var sibling types.AsyncHandle
	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testTimesOut",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					return nil
				}), 20*time.Millisecond)
				sibling = s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					t.Error("cancelled sibling must not run")
					return nil
				}), time.Minute)
				return nil
			}),
		}},
	}

	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Stats.Errored)
	require.Len(t, collector.Results, 1)
	assert.Equal(t, types.StatusError, collector.Results[0].Status())
	assert.True(t, types.IsAsyncTimeout(collector.Results[0].Detail()))

	// The sibling was cancelled; resolving it now is a no-op.
	sibling.Resolve()
	assert.Len(t, collector.Results, 1)
}

func TestAsyncTimeoutContinuation(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testTimeoutHandled",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				s.DeferCompletionWithTimeoutHandler(
					types.InvocableFunc(func(s types.Session, args []any) error {
						t.Error("success continuation must not run")
						return nil
					}),
					types.InvocableFunc(func(s types.Session, args []any) error {
						return nil // timeout is the expected outcome here
					}),
					10*time.Millisecond,
				)
				return nil
			}),
		}},
	}

	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Stats.Passed)
	assert.Equal(t, types.StatusPass, collector.Results[0].Status())
}

func TestMultiplePendingHandles(t *testing.T) {
	e, collector := newTestEngine(t)

	var first, second types.AsyncHandle
	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testTwoHandles",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				noop := types.InvocableFunc(func(s types.Session, args []any) error { return nil })
				first = s.DeferCompletion(noop, time.Minute)
				second = s.DeferCompletion(noop, time.Minute)
				return nil
			}),
		}},
	}

	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	first.Resolve()
	assert.True(t, e.Running(), "still suspended on the second handle")
	assert.Empty(t, collector.Results)

	second.Resolve()
	waitForRun(t, e)
	assert.Equal(t, 1, collector.Stats.Passed)
}

func TestCascadingResumptionAcrossClassesAndSuites(t *testing.T) {
	e, collector := newTestEngine(t)

	var events []string
	var handle types.AsyncHandle
	asyncClass := &types.ClassDescriptor{
		Name: "AsyncClass",
		AfterClass: []types.Hook{{Name: "afterClass", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			events = append(events, "asyncClass.afterClass")
			return nil
		})}},
		Cases: []types.TestCase{{
			Name: "testDeferred",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				handle = s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					events = append(events, "continuation")
					return nil
				}), time.Minute)
				return nil
			}),
		}},
	}
	syncClass := &types.ClassDescriptor{
		Name: "SyncClass",
		Cases: []types.TestCase{{
			Name: "testAfterResume",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				events = append(events, "syncClass.body")
				return nil
			}),
		}},
	}

	suites := []*types.Suite{
		suiteOf("first", asyncClass),
		suiteOf("second", syncClass),
	}
	e.Run(context.Background(), suites)
	assert.True(t, e.Running())
	assert.Empty(t, events, "nothing past the suspension point ran yet")

	handle.Resolve()
	waitForRun(t, e)

	// One callback drained the rest of the class, the next suite and the
	// final summary.
	assert.Equal(t, []string{"continuation", "asyncClass.afterClass", "syncClass.body"}, events)
	assert.Equal(t, 2, collector.Stats.Total)
	assert.Equal(t, 2, collector.Stats.Passed)
	assert.Equal(t, 1, collector.Reports)
}

func TestRunWhileActiveIsNoop(t *testing.T) {
	e, collector := newTestEngine(t)

	var handle types.AsyncHandle
	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testDeferred",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				handle = s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					return nil
				}), time.Minute)
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	require.True(t, e.Running())

	// A second run request while the session is active is ignored.
	e.Run(context.Background(), []*types.Suite{suiteOf("other", &types.ClassDescriptor{
		Name:  "Other",
		Cases: []types.TestCase{passingCase("testOther")},
	})})

	handle.Resolve()
	waitForRun(t, e)
	assert.Equal(t, 1, collector.Stats.Total, "only the first run's case executed")
}

func TestDuplicateSinkRegistrationCountsOnce(t *testing.T) {
	e, err := New(Config{CompletionDelay: time.Millisecond})
	require.NoError(t, err)
	collector := reporting.NewCollector()
	require.NoError(t, e.RegisterSink(collector))
	require.NoError(t, e.RegisterSink(collector))

	completions := 0
	require.NoError(t, e.SetCompletionCallback(func(success bool) {
		completions++
		assert.True(t, success)
	}))

	class := &types.ClassDescriptor{Name: "Sample", Cases: []types.TestCase{passingCase("testPass")}}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Reports, "deduplicated sink receives one summary")
	assert.Equal(t, 1, completions, "completion callback fires exactly once")
}

func TestCompletionCallbackSuccessReflectsFailures(t *testing.T) {
	e, _ := newTestEngine(t)

	var got *bool
	require.NoError(t, e.SetCompletionCallback(func(success bool) {
		got = &success
	}))

	class := &types.ClassDescriptor{
		Name:  "Sample",
		Cases: []types.TestCase{passingCase("testPass"), failingCase("testFail")},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestConfigurationMutationWhileRunningIsFrameworkError(t *testing.T) {
	e, _ := newTestEngine(t)

	var handle types.AsyncHandle
	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testDeferred",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				handle = s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					return nil
				}), time.Minute)
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	require.True(t, e.Running())

	assert.True(t, types.IsFrameworkError(e.RegisterSink(reporting.NewCollector())))
	assert.True(t, types.IsFrameworkError(e.SetCompletionCallback(nil)))
	assert.True(t, types.IsFrameworkError(e.SetAsyncFactory(nil)))

	handle.Resolve()
	waitForRun(t, e)
}

func TestBeforeEachFailureSkipsBody(t *testing.T) {
	e, collector := newTestEngine(t)

	bodyRan := false
	afterEach := 0
	class := &types.ClassDescriptor{
		Name: "Hooked",
		BeforeEach: []types.Hook{{Name: "failingSetup", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			return flowassert.Fail("setup is broken")
		})}},
		AfterEach: []types.Hook{{Name: "teardown", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			afterEach++
			return nil
		})}},
		Cases: []types.TestCase{{
			Name: "testNeverRuns",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				bodyRan = true
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.False(t, bodyRan)
	assert.Equal(t, 1, afterEach, "teardown still runs")
	assert.Equal(t, 1, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Failed)
	assert.Equal(t, types.StatusFail, collector.Results[0].Status())
}

func TestBeforeClassFailureAttributedToFirstCase(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name: "Hooked",
		BeforeClass: []types.Hook{{Name: "brokenSetup", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			return errors.New("setup exploded")
		})}},
		Cases: []types.TestCase{passingCase("testFirst"), passingCase("testSecond")},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 2, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Errored)
	assert.Equal(t, 1, collector.Stats.Passed)
	assert.Equal(t, collector.Stats.Total,
		collector.Stats.Passed+collector.Stats.Failed+collector.Stats.Errored)

	require.Len(t, collector.Results, 2)
	assert.Equal(t, types.StatusError, collector.Results[0].Status())
	assert.Equal(t, "testFirst", collector.Results[0].Location.Method)
	assert.Equal(t, types.StatusPass, collector.Results[1].Status())
}

func TestBeforeClassFailureSkipsIgnoredCases(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name: "Hooked",
		BeforeClass: []types.Hook{{Name: "brokenSetup", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			return errors.New("setup exploded")
		})}},
		Cases: []types.TestCase{
			{
				Name:   "testSkipped",
				Ignore: true,
				Target: types.InvocableFunc(func(s types.Session, args []any) error {
					t.Error("ignored case must not run")
					return nil
				}),
			},
			passingCase("testRunnable"),
		},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	// The hook failure lands on the first runnable case; the ignored case
	// keeps its own record.
	assert.Equal(t, 1, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Errored)
	assert.Equal(t, 1, collector.Stats.Ignored)
	assert.Equal(t, 0, collector.Stats.Passed)
	assert.Equal(t, collector.Stats.Total,
		collector.Stats.Passed+collector.Stats.Failed+collector.Stats.Errored)

	require.Len(t, collector.Results, 2)
	assert.Equal(t, types.StatusError, collector.Results[0].Status())
	assert.Equal(t, "testRunnable", collector.Results[0].Location.Method)
	assert.Equal(t, types.StatusIgnore, collector.Results[1].Status())
	assert.Equal(t, "testSkipped", collector.Results[1].Location.Method)
}

func TestBeforeClassFailureWithOnlyIgnoredCases(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name: "Hooked",
		BeforeClass: []types.Hook{{Name: "brokenSetup", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			return errors.New("setup exploded")
		})}},
		Cases: []types.TestCase{{
			Name:   "testSkipped",
			Ignore: true,
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	// No runnable case to attribute to; the failure is logged only.
	assert.Equal(t, 0, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Ignored)
	require.Len(t, collector.Results, 1)
	assert.Equal(t, types.StatusIgnore, collector.Results[0].Status())
	assert.Equal(t, 1, collector.Reports)
}

func TestInlineResolveCompletesSynchronously(t *testing.T) {
	e, collector := newTestEngine(t)

	var events []string
	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testResolvesInline",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				h := s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					events = append(events, "continuation")
					return nil
				}), time.Minute)
				// The deferred work is already done.
				h.Resolve()
				events = append(events, "body done")
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	assert.False(t, e.Running(), "no suspension when the handle resolved in the body")
	waitForRun(t, e)

	assert.Equal(t, []string{"body done", "continuation"}, events)
	assert.Equal(t, 1, collector.Stats.Total)
	assert.Equal(t, 1, collector.Stats.Passed)
	require.Len(t, collector.Results, 1)
	assert.Equal(t, types.StatusPass, collector.Results[0].Status())
}

func TestInlineResolveChain(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testChainedInlineResolves",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				h := s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					// The continuation defers and resolves inline again.
					h2 := s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
						return nil
					}), time.Minute)
					h2.Resolve()
					return nil
				}), time.Minute)
				h.Resolve()
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Stats.Passed)
	assert.Equal(t, 1, collector.Reports)
}

func TestInlineResolveInHook(t *testing.T) {
	e, collector := newTestEngine(t)

	hookAsync := false
	class := &types.ClassDescriptor{
		Name: "Async",
		BeforeEach: []types.Hook{{Name: "asyncSetup", Target: types.InvocableFunc(func(s types.Session, args []any) error {
			h := s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
				hookAsync = true
				return nil
			}), time.Minute)
			h.Resolve()
			return nil
		})}},
		Cases: []types.TestCase{passingCase("testAfterSetup")},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.True(t, hookAsync, "the hook's continuation ran before the body")
	assert.Equal(t, 1, collector.Stats.Passed)
}

func TestDebugIncludesDebugOnlyCases(t *testing.T) {
	class := &types.ClassDescriptor{
		Name: "Debuggable",
		Cases: []types.TestCase{
			passingCase("testAlways"),
			{
				Name:      "testDebugOnly",
				DebugOnly: true,
				Target: types.InvocableFunc(func(s types.Session, args []any) error {
					return nil
				}),
			},
		},
	}

	e, collector := newTestEngine(t)
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)
	assert.Equal(t, 1, collector.Stats.Total, "debug-only case skipped in a normal run")

	e2, collector2 := newTestEngine(t)
	e2.Debug(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e2)
	assert.Equal(t, 2, collector2.Stats.Total, "debug run includes the debug-only case")
}

func TestUnresolvedHandleKeepsRunPending(t *testing.T) {
	e, collector := newTestEngine(t)

	var handle types.AsyncHandle
	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testNeverResolves",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				handle = s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					return nil
				}), time.Hour)
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Wait(ctx), context.DeadlineExceeded)
	assert.True(t, e.Running())
	assert.Equal(t, 0, collector.Reports, "no summary until the handle resolves")

	handle.Resolve()
	waitForRun(t, e)
	assert.Equal(t, 1, collector.Reports)
}

func TestAdvancedSinkSeesClassActivationsAndReset(t *testing.T) {
	e, collector := newTestEngine(t)

	classA := &types.ClassDescriptor{Name: "Alpha", Cases: []types.TestCase{passingCase("testA")}}
	classB := &types.ClassDescriptor{Name: "Beta", Cases: []types.TestCase{passingCase("testB")}}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", classA, classB)})
	waitForRun(t, e)

	assert.Equal(t, []string{"Alpha", "Beta", ""}, collector.Classes,
		"class activations in order, then the reset before the summary")
}

func TestCaseFailureCancelsPendingWork(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{
		Name: "Async",
		Cases: []types.TestCase{{
			Name: "testRegistersThenRaises",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
					t.Error("cancelled handle must not run")
					return nil
				}), time.Minute)
				return errors.New("raised after registering")
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)

	assert.Equal(t, 1, collector.Stats.Errored)
	assert.Equal(t, 1, collector.Reports, "run completes despite the cancelled handle")
}

func TestStaleSessionHandleIsInert(t *testing.T) {
	e, collector := newTestEngine(t)

	var leaked types.Session
	class := &types.ClassDescriptor{
		Name: "Sample",
		Cases: []types.TestCase{{
			Name: "testLeaksSession",
			Target: types.InvocableFunc(func(s types.Session, args []any) error {
				leaked = s
				return nil
			}),
		}},
	}
	e.Run(context.Background(), []*types.Suite{suiteOf("main", class)})
	waitForRun(t, e)
	require.NotNil(t, leaked)

	// The run is over; deferring through the leaked handle yields an inert
	// token that never resolves into anything.
	h := leaked.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
		t.Error("inert handle must not invoke its continuation")
		return nil
	}), time.Millisecond)
	require.NotNil(t, h)
	h.Resolve()
	time.Sleep(10 * time.Millisecond)
	assert.False(t, e.Running())
	assert.Equal(t, 1, collector.Reports)
}

func TestRerunAfterCompletion(t *testing.T) {
	e, collector := newTestEngine(t)

	class := &types.ClassDescriptor{Name: "Sample", Cases: []types.TestCase{passingCase("testPass")}}
	suites := []*types.Suite{suiteOf("main", class)}

	e.Run(context.Background(), suites)
	waitForRun(t, e)
	require.Equal(t, 1, collector.Reports)

	collector.Reset()
	e.Run(context.Background(), suites)
	waitForRun(t, e)
	assert.Equal(t, 1, collector.Reports)
	assert.Equal(t, 1, collector.Stats.Passed, "fresh Result records on the second run")
}
