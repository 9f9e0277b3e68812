// Package metrics provides centralized Prometheus metrics registry for the validation service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategy_validator",
		Name:      "validation_runs_total",
		Help:      "Total number of terminal test runs by outcome",
	}, []string{"outcome"})
	SessionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategy_validator",
		Name:      "validation_session_transitions_total",
		Help:      "Total number of session status transitions by target status",
	}, []string{"status"})
	AdjustmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strategy_validator",
		Name:      "validation_adjustments_total",
		Help:      "Total number of strategy adjustment hooks triggered",
	})
	BacktestServiceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategy_validator",
		Name:      "backtest_service_requests_total",
		Help:      "Total number of backtest service requests by operation and status",
	}, []string{"operation", "status"})
)

// Gauge metrics
var (
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "strategy_validator",
		Name:      "validation_sessions_active",
		Help:      "Number of sessions currently in the running state",
	})
	LearningProgress = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "strategy_validator",
		Name:      "validation_learning_progress",
		Help:      "Learning progress (0-100) per session",
	}, []string{"session_id"})
)

// Histogram metrics
var (
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strategy_validator",
		Name:      "validation_run_duration_seconds",
		Help:      "Duration from submission to terminal state of test runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RunsTotal)
		registry.MustRegister(SessionTransitionsTotal)
		registry.MustRegister(AdjustmentsTotal)
		registry.MustRegister(BacktestServiceRequestsTotal)

		registry.MustRegister(SessionsActive)
		registry.MustRegister(LearningProgress)

		registry.MustRegister(RunDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordRun records a terminal run.
// outcome should be one of: "passed", "failed_criteria", "rejected", "execution_error", "timeout", "cancelled"
func RecordRun(outcome string, durationSeconds float64) {
	RunsTotal.WithLabelValues(outcome).Inc()
	if durationSeconds > 0 {
		RunDuration.Observe(durationSeconds)
	}
}

// RecordSessionTransition records a session moving into status.
func RecordSessionTransition(from, to string) {
	SessionTransitionsTotal.WithLabelValues(to).Inc()
	if to == "running" && from != "running" {
		SessionsActive.Inc()
	} else if from == "running" && to != "running" {
		SessionsActive.Dec()
	}
}

// RecordAdjustment records a strategy adjustment trigger.
func RecordAdjustment() {
	AdjustmentsTotal.Inc()
}

// RecordBacktestRequest records a call to the backtest service.
func RecordBacktestRequest(operation, status string) {
	BacktestServiceRequestsTotal.WithLabelValues(operation, status).Inc()
}

// UpdateLearningProgress sets the learning progress gauge for a session.
func UpdateLearningProgress(sessionID string, progress float64) {
	LearningProgress.WithLabelValues(sessionID).Set(progress)
}

// ForgetSession drops per-session series.
func ForgetSession(sessionID string) {
	LearningProgress.DeleteLabelValues(sessionID)
}
