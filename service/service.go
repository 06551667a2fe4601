// Package service hosts the HTTP side-surfaces of a flowtest process:
// liveness checks and Prometheus metrics.
package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/flowtest/flowtest/metrics"
)

const (
	DefaultHealthzAddr = "0.0.0.0:8080"
	DefaultMetricsAddr = "0.0.0.0:7300"
)

// Config holds the HTTP service configuration. Addresses left empty fall
// back to the defaults above.
type Config struct {
	Log         log.Logger
	Version     string
	HealthzAddr string
	MetricsAddr string
}

// Service owns the healthz and metrics HTTP servers.
type Service struct {
	config  Config
	Healthz *HealthzServer
	Metrics *MetricsServer
}

// New creates the HTTP service surface.
func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.HealthzAddr == "" {
		cfg.HealthzAddr = DefaultHealthzAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultMetricsAddr
	}
	return &Service{
		config:  cfg,
		Healthz: &HealthzServer{log: cfg.Log, version: cfg.Version},
		Metrics: &MetricsServer{log: cfg.Log},
	}
}

// Start launches both servers in the background. Listen failures are logged
// and counted; they do not abort the test run.
func (s *Service) Start(ctx context.Context) {
	s.config.Log.Info("Starting HTTP services",
		"healthz", s.config.HealthzAddr, "metrics", s.config.MetricsAddr)

	go func() {
		if err := s.Healthz.Start(ctx, s.config.HealthzAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.config.Log.Error("Error starting healthz server", "err", err)
			metrics.RecordErrorDetails("error starting healthz server", err)
		}
	}()

	go func() {
		if err := s.Metrics.Start(ctx, s.config.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.config.Log.Error("Error starting metrics server", "err", err)
			metrics.RecordErrorDetails("error starting metrics server", err)
		}
	}()
}

// Shutdown stops both servers.
func (s *Service) Shutdown() {
	s.config.Log.Info("Stopping HTTP services")
	if err := s.Healthz.Shutdown(); err != nil {
		s.config.Log.Error("Error stopping healthz server", "err", err)
	}
	if err := s.Metrics.Shutdown(); err != nil {
		s.config.Log.Error("Error stopping metrics server", "err", err)
	}
}
