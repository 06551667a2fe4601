package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	flowtest "github.com/flowtest/flowtest"
	"github.com/flowtest/flowtest/flags"
	"github.com/flowtest/flowtest/registry"
	"github.com/flowtest/flowtest/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "flowtest"
	app.Usage = "Asynchronous test execution service"
	app.Description = "flowtest runs registered test classes through the async-aware execution engine"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if flowtest.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if flowtest.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	logger := newLogger(ctx.String(flags.LogLevel.Name))

	cfg, err := flowtest.NewConfig(ctx, logger)
	if err != nil {
		return flowtest.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	// Healthz/metrics servers live for the duration of the run.
	httpSvc := service.New(service.Config{
		Log:         logger,
		Version:     Version,
		HealthzAddr: cfg.HealthzAddr,
		MetricsAddr: cfg.MetricsAddr,
	})
	httpSvc.Start(ctx.Context)
	defer httpSvc.Shutdown()

	reg := registry.NewRegistry(registry.Config{Log: logger})
	if err := registerSelfCheckClasses(reg); err != nil {
		return flowtest.NewRuntimeError(fmt.Errorf("failed to register classes: %w", err))
	}

	svc, err := flowtest.New(ctx.Context, cfg, Version, reg, func(error) {})
	if err != nil {
		return flowtest.NewRuntimeError(fmt.Errorf("failed to create service: %w", err))
	}

	if err := svc.Start(ctx.Context); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	<-ctx.Context.Done()
	return svc.Stop(context.Background())
}

func newLogger(level string) log.Logger {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		lvl = log.LevelInfo
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true))
}
