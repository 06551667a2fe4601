package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flowtest/flowtest/types"
)

const (
	MetricsNamespace = "flowtest"
)

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of engine errors",
	}, []string{
		"error",
	})

	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of executed test cases by outcome",
	}, []string{
		"status",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of completed test runs by result",
	}, []string{
		"result",
	})

	runDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the most recent test run",
	})
)

// RecordError increments the error counter for the given error label.
func RecordError(label string) {
	errorsTotal.WithLabelValues(label).Inc()
}

// RecordErrorDetails increments the error counter with the error appended
// to the label.
func RecordErrorDetails(label string, err error) {
	if err == nil {
		RecordError(label)
		return
	}
	RecordError(label + ": " + err.Error())
}

// RecordCase records one case outcome.
func RecordCase(status types.Status) {
	casesTotal.WithLabelValues(string(status)).Inc()
}

// RecordRun records final run statistics.
func RecordRun(stats types.Stats) {
	result := "fail"
	if stats.Success() {
		result = "pass"
	}
	runsTotal.WithLabelValues(result).Inc()
	runDuration.Set(stats.Elapsed.Seconds())
}
