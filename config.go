package flowtest

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/flowtest/flowtest/flags"
)

// Config holds the application configuration
type Config struct {
	PlanPath     string        // Path to the YAML run plan; empty runs every registered class
	RunInterval  time.Duration // Interval between test runs
	RunOnce      bool          // Indicates if the service should exit after one test run
	Debug        bool          // Include cases tagged debug-only
	AsyncTimeout time.Duration // Default callback window for deferred cases
	SummaryFile  string        // Path for the plain-text summary; empty disables the sink
	XMLReport    string        // Path for the JUnit-style XML report; empty disables the sink
	HealthzAddr  string        // Listen address for the healthz server
	MetricsAddr  string        // Listen address for the Prometheus metrics server
	Log          log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		PlanPath:     ctx.String(flags.Plan.Name),
		RunInterval:  runInterval,
		RunOnce:      runInterval == 0,
		Debug:        ctx.Bool(flags.Debug.Name),
		AsyncTimeout: ctx.Duration(flags.AsyncTimeout.Name),
		SummaryFile:  ctx.String(flags.SummaryFile.Name),
		XMLReport:    ctx.String(flags.XMLReport.Name),
		HealthzAddr:  ctx.String(flags.HealthzAddr.Name),
		MetricsAddr:  ctx.String(flags.MetricsAddr.Name),
		Log:          log,
	}, nil
}
