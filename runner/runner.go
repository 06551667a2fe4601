// Package runner implements the test-execution engine: it walks suites,
// classes and cases, invokes hooks and test bodies through the uniform
// Invocable contract, classifies outcomes, tracks deferred async
// completions, and fans results out to every registered sink with a
// completion barrier.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowtest/flowtest/async"
	"github.com/flowtest/flowtest/reporting"
	"github.com/flowtest/flowtest/types"
)

// Engine implements the async.Observer interface.
var _ async.Observer = (*Engine)(nil)

// DefaultCompletionDelay is the pause between the last sink acknowledgment
// and the run-level completion callback.
const DefaultCompletionDelay = 25 * time.Millisecond

// Engine drives test execution. At most one session is active at a time;
// all entry points are serialized, so at most one test body, hook or
// continuation is running at any instant.
type Engine struct {
	log             log.Logger
	tracer          trace.Tracer
	completionDelay time.Duration

	mu         sync.Mutex
	factory    *async.Factory
	sinks      []reporting.ResultSink
	completion func(success bool)
	session    *session
	done       chan struct{}

	// active mirrors session for the sink acknowledgment path, which runs
	// inside the final-statistics fan-out while the engine lock is held.
	active atomic.Pointer[session]
}

// Config holds configuration for creating a new engine.
type Config struct {
	Log log.Logger
	// DefaultTimeout is the async callback window applied when a test
	// defers completion without an explicit timeout.
	DefaultTimeout time.Duration
	// CompletionDelay overrides DefaultCompletionDelay.
	CompletionDelay time.Duration
}

// New creates a new engine instance.
func New(cfg Config) (*Engine, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Warn("No logger provided, using default")
	}
	if cfg.CompletionDelay <= 0 {
		cfg.CompletionDelay = DefaultCompletionDelay
	}

	e := &Engine{
		log:             cfg.Log,
		tracer:          otel.Tracer("flowtest/runner"),
		completionDelay: cfg.CompletionDelay,
	}
	factory, err := async.NewFactory(async.FactoryConfig{
		Observer:       e,
		DefaultTimeout: cfg.DefaultTimeout,
		Log:            cfg.Log,
	})
	if err != nil {
		return nil, err
	}
	e.factory = factory
	return e, nil
}

// RegisterSink adds a result sink and hands it its acknowledgment callback.
// Registering the same sink value twice is ignored, so the completion
// barrier counts each sink once. Registering while a run is active is a
// FrameworkError.
func (e *Engine) RegisterSink(sink reporting.ResultSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return types.NewFrameworkError("cannot register a sink while a run is active")
	}
	for _, existing := range e.sinks {
		if existing == sink {
			e.log.Warn("Sink already registered, ignoring duplicate registration")
			return nil
		}
	}
	e.sinks = append(e.sinks, sink)
	sink.SetAcknowledgeHandler(func() {
		e.acknowledge(e.active.Load())
	})
	return nil
}

// SetAsyncFactory replaces the handle factory. The factory must be bound to
// this engine as its observer. Mutating the factory while a run is active
// is a FrameworkError.
func (e *Engine) SetAsyncFactory(factory *async.Factory) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return types.NewFrameworkError("cannot replace the async factory while a run is active")
	}
	if factory == nil {
		return types.NewFrameworkError("async factory is required")
	}
	e.factory = factory
	return nil
}

// SetCompletionCallback registers the callback invoked, with the run's
// overall success, once every sink has acknowledged the final summary.
func (e *Engine) SetCompletionCallback(cb func(success bool)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return types.NewFrameworkError("cannot set the completion callback while a run is active")
	}
	e.completion = cb
	return nil
}

// Run executes the given suites in order. If a session is already active
// the call is an idempotent no-op. Execution may complete synchronously
// inside the call or suspend on pending async work; callers that need the
// outcome should use the completion callback or Wait.
func (e *Engine) Run(ctx context.Context, suites []*types.Suite) {
	e.start(ctx, suites, false)
}

// Debug is Run with debug-only cases included instead of skipped.
func (e *Engine) Debug(ctx context.Context, suites []*types.Suite) {
	e.start(ctx, suites, true)
}

func (e *Engine) start(ctx context.Context, suites []*types.Suite, debug bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.log.Warn("Run requested while a session is active, ignoring")
		return
	}

	runID := uuid.New().String()
	runCtx, span := e.tracer.Start(ctx, "test run")
	s := &session{
		runID:     runID,
		ctx:       runCtx,
		span:      span,
		debug:     debug,
		suites:    append([]*types.Suite(nil), suites...),
		pending:   make(map[*async.Handle]struct{}),
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	e.session = s
	e.active.Store(s)
	e.done = s.done

	e.log.Info("Starting test run", "run_id", runID, "suites", len(suites), "debug", debug)
	e.execute()
}

// Running reports whether a session is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Wait blocks until the most recently started run has fully completed,
// meaning every sink acknowledged and the completion callback fired, or
// until the context expires.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
