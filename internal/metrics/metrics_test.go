package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordRun(t *testing.T) {
	InitRegistry()

	before := value(t, RunsTotal.WithLabelValues("timeout"))
	assert.NotPanics(t, func() {
		RecordRun("timeout", 12.5)
	})
	assert.Equal(t, before+1, value(t, RunsTotal.WithLabelValues("timeout")))
}

func TestRecordSessionTransitionTracksActiveSessions(t *testing.T) {
	InitRegistry()

	start := value(t, SessionsActive)
	RecordSessionTransition("idle", "running")
	assert.Equal(t, start+1, value(t, SessionsActive))

	RecordSessionTransition("running", "paused")
	assert.Equal(t, start, value(t, SessionsActive))

	RecordSessionTransition("paused", "stopped")
	assert.Equal(t, start, value(t, SessionsActive))
}

func TestUpdateLearningProgress(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name     string
		progress float64
	}{
		{name: "warming up", progress: 20},
		{name: "evaluating", progress: 76},
		{name: "proven", progress: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			UpdateLearningProgress("session-1", tt.progress)
			assert.Equal(t, tt.progress, value(t, LearningProgress.WithLabelValues("session-1")))
		})
	}

	ForgetSession("session-1")
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()
	RecordAdjustment()
	RecordBacktestRequest("submit", "ok")

	handler := Handler()
	require.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "strategy_validator_validation_adjustments_total"))
}
