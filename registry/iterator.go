package registry

import "github.com/flowtest/flowtest/types"

// CaseIterator walks one class's lifecycle hooks and case list in order.
// Descriptors are shared between runs, so the iterator yields per-run copies
// of each case with a fresh Result record. The cursor is restartable by
// index: the engine re-enters the same iterator after an async suspension.
type CaseIterator struct {
	class   *types.ClassDescriptor
	debug   bool
	cursor  int
	current *types.TestCase
	queue   []*types.TestCase
}

// NewCaseIterator creates an iterator over class. When debug is false,
// cases tagged debug-only are skipped entirely.
func NewCaseIterator(class *types.ClassDescriptor, debug bool) *CaseIterator {
	return &CaseIterator{class: class, debug: debug}
}

// ClassName returns the name of the class under iteration.
func (it *CaseIterator) ClassName() string {
	return it.class.Name
}

// BeforeClass returns the ordered before-class hooks.
func (it *CaseIterator) BeforeClass() []types.Hook { return it.class.BeforeClass }

// AfterClass returns the ordered after-class hooks.
func (it *CaseIterator) AfterClass() []types.Hook { return it.class.AfterClass }

// BeforeEach returns the ordered before-each hooks.
func (it *CaseIterator) BeforeEach() []types.Hook { return it.class.BeforeEach }

// AfterEach returns the ordered after-each hooks.
func (it *CaseIterator) AfterEach() []types.Hook { return it.class.AfterEach }

// materialize prepares per-run copies of includable cases until the queue
// holds at least n entries or the class is exhausted.
func (it *CaseIterator) materialize(n int) {
	for len(it.queue) < n && it.cursor < len(it.class.Cases) {
		c := it.class.Cases[it.cursor]
		it.cursor++
		if c.DebugOnly && !it.debug {
			continue
		}
		instance := c
		instance.Result = types.NewResult(types.SourceLocation{
			Class:  it.class.Name,
			Method: c.Name,
		})
		it.queue = append(it.queue, &instance)
	}
}

// Peek returns the next case without consuming it, or nil when the class is
// exhausted. Repeated calls return the same instance.
func (it *CaseIterator) Peek() *types.TestCase {
	it.materialize(1)
	if len(it.queue) == 0 {
		return nil
	}
	return it.queue[0]
}

// PeekRunnable returns the next case that will actually execute, skipping
// ignored entries, without consuming anything. Class-hook failures are
// attributed to it; ignored cases never run hooks, so they are not
// attribution targets. Returns nil when no runnable case remains.
func (it *CaseIterator) PeekRunnable() *types.TestCase {
	for n := 1; ; n++ {
		it.materialize(n)
		if len(it.queue) < n {
			return nil
		}
		if !it.queue[n-1].Ignore {
			return it.queue[n-1]
		}
	}
}

// HasNext reports whether another case remains.
func (it *CaseIterator) HasNext() bool {
	return it.Peek() != nil
}

// Next consumes and returns the next case.
func (it *CaseIterator) Next() *types.TestCase {
	it.materialize(1)
	if len(it.queue) == 0 {
		it.current = nil
		return nil
	}
	it.current = it.queue[0]
	it.queue = it.queue[1:]
	return it.current
}

// Current returns the most recently consumed case, or nil before the first
// Next call.
func (it *CaseIterator) Current() *types.TestCase {
	return it.current
}
