// Package async provides the deferred-completion tokens used by test bodies
// that finish via a callback instead of returning synchronously. The factory
// owns the timeout timer; the engine observes creation, success and timeout
// through the Observer contract and owns the pending-set bookkeeping.
package async

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/flowtest/flowtest/types"
)

// DefaultTimeout is the callback window applied when a handle is created
// without an explicit timeout.
const DefaultTimeout = 5 * time.Second

// Observer receives the lifecycle events of every handle the factory
// produces. The engine implements it.
type Observer interface {
	OnAsyncCreated(h *Handle)
	OnAsyncSuccess(h *Handle)
	OnAsyncTimeout(h *Handle)
}

// Handle represents one outstanding asynchronous test completion. A handle
// resolves at most once, via exactly one of Resolve, timeout or Cancel.
//
// A handle is created inert and goes live when the engine activates it,
// after the invocation that registered it has returned. Resolving before
// activation does not notify the observer; the resolution is recorded and
// surfaces through Activate, so a callback arriving on the registering
// invocation's own stack cannot re-enter the engine.
type Handle struct {
	success   types.Invocable
	onTimeout types.Invocable
	timeout   time.Duration
	observer  Observer

	mu       sync.Mutex
	timer    *time.Timer
	resolved bool
	live     bool
	early    bool
}

// Success returns the continuation to run when the handle resolves.
func (h *Handle) Success() types.Invocable {
	return h.success
}

// TimeoutHandler returns the continuation to run when the handle times out,
// or nil when the timeout should be recorded as an error.
func (h *Handle) TimeoutHandler() types.Invocable {
	return h.onTimeout
}

// Timeout returns the callback window the handle was created with.
func (h *Handle) Timeout() time.Duration {
	return h.timeout
}

// Resolve signals successful completion. Resolving a handle that already
// resolved, timed out or was cancelled is a no-op. Resolving before the
// handle is live defers the success delivery to activation.
func (h *Handle) Resolve() {
	h.mu.Lock()
	if h.resolved {
		h.mu.Unlock()
		return
	}
	h.resolved = true
	if h.timer != nil {
		h.timer.Stop()
	}
	if !h.live {
		h.early = true
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.observer.OnAsyncSuccess(h)
}

// Activate marks the handle live and arms its timeout timer. It reports
// whether the handle was resolved before activation, in which case the
// success continuation is due immediately and no timer is armed. Activating
// a live handle is a no-op.
func (h *Handle) Activate() (resolvedEarly bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live {
		return false
	}
	h.live = true
	if h.resolved {
		return h.early
	}
	h.timer = time.AfterFunc(h.timeout, h.fireTimeout)
	return false
}

// Cancel withdraws the handle without notifying the observer. The engine
// cancels sibling handles when a case raises; cancellation never produces a
// result of its own.
func (h *Handle) Cancel() {
	h.settle()
}

// settle marks the handle resolved and stops the timer. It returns false if
// the handle was already settled.
func (h *Handle) settle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resolved {
		return false
	}
	h.resolved = true
	if h.timer != nil {
		h.timer.Stop()
	}
	return true
}

func (h *Handle) fireTimeout() {
	if !h.settle() {
		return
	}
	h.observer.OnAsyncTimeout(h)
}

// Factory produces handles bound to an observer.
type Factory struct {
	observer       Observer
	defaultTimeout time.Duration
	log            log.Logger
}

// FactoryConfig holds configuration for creating a new factory.
type FactoryConfig struct {
	Observer       Observer
	DefaultTimeout time.Duration
	Log            log.Logger
}

// NewFactory creates a new handle factory bound to the given observer.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Observer == nil {
		return nil, errors.New("observer is required")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Factory{
		observer:       cfg.Observer,
		defaultTimeout: cfg.DefaultTimeout,
		log:            cfg.Log,
	}, nil
}

// Create registers a new handle with the observer. The handle is inert
// until the engine activates it; the timeout window starts at activation.
// A non-positive timeout selects the factory default.
func (f *Factory) Create(success, onTimeout types.Invocable, timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}
	h := &Handle{
		success:   success,
		onTimeout: onTimeout,
		timeout:   timeout,
		observer:  f.observer,
	}
	f.log.Debug("Async handle created", "timeout", timeout, "hasTimeoutHandler", onTimeout != nil)
	f.observer.OnAsyncCreated(h)
	return h
}
