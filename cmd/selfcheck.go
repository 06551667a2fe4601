package main

import (
	"fmt"
	"time"

	"github.com/flowtest/flowtest/assert"
	"github.com/flowtest/flowtest/registry"
	"github.com/flowtest/flowtest/types"
)

// registerSelfCheckClasses registers the built-in classes the binary runs.
// They exercise the engine end to end: hooks, arguments, ignored cases,
// debug-only cases and deferred async completion.
func registerSelfCheckClasses(reg *registry.Registry) error {
	state := &selfCheckState{}

	class := &types.ClassDescriptor{
		Name: "SelfCheck",
		BeforeClass: []types.Hook{
			{Name: "openFixture", Target: types.InvocableFunc(state.openFixture)},
		},
		AfterClass: []types.Hook{
			{Name: "closeFixture", Target: types.InvocableFunc(state.closeFixture)},
		},
		BeforeEach: []types.Hook{
			{Name: "resetCounter", Target: types.InvocableFunc(state.resetCounter)},
		},
		Cases: []types.TestCase{
			{
				Name: "testCounterStartsAtZero",
				Target: types.InvocableFunc(func(s types.Session, args []any) error {
					return assert.Equal(0, state.counter, "counter after reset")
				}),
			},
			{
				Name: "testSumWithArguments",
				Args: []any{2, 3, 5},
				Target: types.InvocableFunc(func(s types.Session, args []any) error {
					a, b, want := args[0].(int), args[1].(int), args[2].(int)
					return assert.Equal(want, a+b, fmt.Sprintf("%d+%d", a, b))
				}),
			},
			{
				Name: "testDeferredCompletion",
				Target: types.InvocableFunc(func(s types.Session, args []any) error {
					h := s.DeferCompletion(types.InvocableFunc(func(s types.Session, args []any) error {
						return assert.True(state.fixtureOpen, "fixture open in continuation")
					}), time.Second)
					go func() {
						time.Sleep(10 * time.Millisecond)
						h.Resolve()
					}()
					return nil
				}),
			},
			{
				Name:   "testIgnoredForNow",
				Ignore: true,
				Target: types.InvocableFunc(func(s types.Session, args []any) error {
					return assert.Fail("should never run")
				}),
			},
			{
				Name:      "testDebugRunDetails",
				DebugOnly: true,
				Target: types.InvocableFunc(func(s types.Session, args []any) error {
					return assert.True(s.RunID() != "", "run has an ID")
				}),
			},
		},
	}
	return reg.Register(class)
}

type selfCheckState struct {
	fixtureOpen bool
	counter     int
}

func (s *selfCheckState) openFixture(_ types.Session, _ []any) error {
	s.fixtureOpen = true
	return nil
}

func (s *selfCheckState) closeFixture(_ types.Session, _ []any) error {
	s.fixtureOpen = false
	return nil
}

func (s *selfCheckState) resetCounter(_ types.Session, _ []any) error {
	s.counter = 0
	return nil
}
