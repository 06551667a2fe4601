// Package flowtest wires the execution engine, registry and sinks into a
// runnable service with run-once and periodic modes.
package flowtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/flowtest/flowtest/exitcodes"
	"github.com/flowtest/flowtest/registry"
	"github.com/flowtest/flowtest/reporting"
	"github.com/flowtest/flowtest/runner"
	"github.com/flowtest/flowtest/types"

	metricspkg "github.com/flowtest/flowtest/metrics"
)

// Service runs registered test classes through the engine, once or
// periodically, and derives the process outcome from the run results.
type Service struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	engine    *runner.Engine
	collector *reporting.Collector
	suites    []*types.Suite

	lastSuccess atomic.Bool
	running     atomic.Bool
	done        chan struct{}
	wg          sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the service: engine, sinks and resolved suites.
func New(ctx context.Context, config *Config, version string, reg *registry.Registry, shutdownCallback func(error)) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if reg == nil {
		return nil, errors.New("registry is required")
	}

	config.Log.Debug("Creating flowtest service",
		"plan", config.PlanPath,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"debug", config.Debug)

	engine, err := runner.New(runner.Config{
		Log:            config.Log,
		DefaultTimeout: config.AsyncTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	s := &Service{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		engine:           engine,
		collector:        reporting.NewCollector(),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}

	if err := s.resolveSuites(); err != nil {
		return nil, err
	}
	if err := s.registerSinks(); err != nil {
		return nil, err
	}
	if err := engine.SetCompletionCallback(s.onRunComplete); err != nil {
		return nil, err
	}
	config.Log.Info("flowtest.New: created engine and sinks", "suites", len(s.suites))
	return s, nil
}

func (s *Service) resolveSuites() error {
	if s.config.PlanPath == "" {
		s.suites = []*types.Suite{s.registry.AllAsSuite("all")}
		return nil
	}
	suites, err := s.registry.LoadPlan(s.config.PlanPath)
	if err != nil {
		return fmt.Errorf("failed to load run plan: %w", err)
	}
	s.suites = suites
	return nil
}

func (s *Service) registerSinks() error {
	sinks := []reporting.ResultSink{
		s.collector,
		reporting.NewConsoleSink(os.Stdout),
		metricspkg.NewSink(),
	}
	if s.config.SummaryFile != "" {
		sinks = append(sinks, reporting.NewTextSummarySink(s.config.SummaryFile))
	}
	if s.config.XMLReport != "" {
		sinks = append(sinks, reporting.NewXMLSink(s.config.XMLReport))
	}
	for _, sink := range sinks {
		if err := s.engine.RegisterSink(sink); err != nil {
			return fmt.Errorf("failed to register sink: %w", err)
		}
	}
	return nil
}

// Start runs the tests, periodically when an interval is configured.
func (s *Service) Start(ctx context.Context) error {
	// Runtime errors (as opposed to test failures) exit with code 2.
	defer func() {
		if r := recover(); r != nil {
			s.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	s.ctx = ctx
	s.done = make(chan struct{})
	s.running.Store(true)

	if s.config.RunOnce {
		s.config.Log.Info("Starting flowtest in run-once mode")
		if err := s.runTests(); err != nil {
			return err
		}
		if !s.lastSuccess.Load() {
			s.config.Log.Warn("Run-once completed with failures, returning exit code 1")
			return NewTestFailureError(s.collector.Stats.String())
		}
		go func() {
			s.shutdownCallback(nil)
		}()
		return nil
	}

	s.config.Log.Info("Starting flowtest in continuous mode", "interval", s.config.RunInterval)
	if err := s.runTests(); err != nil {
		s.config.Log.Error("Error running tests", "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-time.After(s.config.RunInterval):
				if !s.running.Load() {
					return
				}
				s.config.Log.Info("Running periodic tests")
				if err := s.runTests(); err != nil {
					s.config.Log.Error("Error running periodic tests", "error", err)
				}
			case <-s.done:
				s.config.Log.Debug("Done signal received, stopping periodic runner")
				return
			case <-ctx.Done():
				s.config.Log.Debug("Context canceled, stopping periodic runner")
				s.running.Store(false)
				return
			}
		}
	}()
	s.config.Log.Debug("flowtest started successfully")
	return nil
}

// runTests starts one engine run and blocks until every sink has
// acknowledged the summary and the completion callback has fired.
func (s *Service) runTests() error {
	if s.engine.Running() {
		s.config.Log.Warn("Previous run still active (pending async work?), skipping")
		return nil
	}
	s.collector.Reset()
	if s.config.Debug {
		s.engine.Debug(s.ctx, s.suites)
	} else {
		s.engine.Run(s.ctx, s.suites)
	}
	if err := s.engine.Wait(s.ctx); err != nil {
		return NewRuntimeError(fmt.Errorf("run did not complete: %w", err))
	}
	return nil
}

// onRunComplete is the engine's completion callback: it fires once every
// sink has acknowledged the final summary.
func (s *Service) onRunComplete(success bool) {
	s.lastSuccess.Store(success)
	s.printResultsTable()
	s.config.Log.Info("Test run completed", "success", success)
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping flowtest")
	if !s.running.Load() {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	s.running.Store(false)
	close(s.done)
	s.config.Log.Info("flowtest stopped successfully")
	return nil
}

// Stopped returns true if the service is stopped.
func (s *Service) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (s *Service) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}

// printResultsTable prints the collected results of the run to the console.
func (s *Service) printResultsTable() {
	stats := s.collector.Stats

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Test Results (%.1fs)", stats.Elapsed.Seconds()))
	t.AppendHeader(table.Row{"Class", "Case", "Duration", "Status", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Class", AutoMerge: true},
		{Name: "Case", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, result := range s.collector.Results {
		detail := ""
		if result.Detail() != nil {
			detail = result.Detail().Error()
		}
		t.AppendRow(table.Row{
			result.Location.Class,
			result.Location.Method,
			fmt.Sprintf("%.2fs", result.Duration.Seconds()),
			statusString(result.Status()),
			detail,
		})
	}

	if stats.Success() {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
	t.AppendFooter(table.Row{
		"TOTAL", "",
		fmt.Sprintf("%.1fs", stats.Elapsed.Seconds()),
		fmt.Sprintf("%d/%d passed", stats.Passed, stats.Total),
		fmt.Sprintf("%d failed, %d errored, %d ignored", stats.Failed, stats.Errored, stats.Ignored),
	})
	t.Render()
}

// statusString returns a marked string representing the case outcome
func statusString(status types.Status) string {
	switch status {
	case types.StatusPass:
		return "✓ pass"
	case types.StatusIgnore:
		return "- ignore"
	case types.StatusFail:
		return "✗ fail"
	default:
		return "! error"
	}
}
