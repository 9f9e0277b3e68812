package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestValidationLoggerRunQueued(t *testing.T) {
	log, buf := setupTestLogger()
	validationLogger := NewValidationLogger(log)

	validationLogger.LogRunQueued("session_1", "run_1", "Validation run 1", "2026-07-19..2026-10-17", 90)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "validation", logEntry["component"])
	assert.Equal(t, "session_1", logEntry["session_id"])
	assert.Equal(t, "Validation run 1", logEntry["label"])
	assert.Equal(t, float64(90), logEntry["window_days"])
	assert.Equal(t, "Test run queued", logEntry["msg"])
}

func TestValidationLoggerRunCompleted(t *testing.T) {
	tests := []struct {
		name      string
		passed    bool
		wantLevel string
		wantMsg   string
	}{
		{"passed", true, "info", "Test run passed criteria"},
		{"missed", false, "warning", "Test run missed criteria"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := setupTestLogger()
			NewValidationLogger(log).LogRunCompleted("session_1", "run_1", tt.passed, 1.8, 0.14, 12.5)

			logEntry := parseLogOutput(buf)
			require.NotNil(t, logEntry)
			assert.Equal(t, tt.wantLevel, logEntry["level"])
			assert.Equal(t, tt.wantMsg, logEntry["msg"])
			assert.Equal(t, 1.8, logEntry["sharpe_ratio"])
			assert.Equal(t, tt.passed, logEntry["passed"])
		})
	}
}

func TestValidationLoggerRunFailed(t *testing.T) {
	log, buf := setupTestLogger()
	NewValidationLogger(log).LogRunFailed("session_1", "run_1", "timeout", "no result within 5m0s")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])
	assert.Equal(t, "timeout", logEntry["failure_reason"])
}

func TestValidationLoggerTransition(t *testing.T) {
	log, buf := setupTestLogger()
	NewValidationLogger(log).LogSessionTransition("session_1", "running", "profitable", "profitability criteria met")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "running", logEntry["from"])
	assert.Equal(t, "profitable", logEntry["to"])
	assert.Equal(t, "profitability criteria met", logEntry["reason"])
}

func TestValidationLoggerAdjustment(t *testing.T) {
	log, buf := setupTestLogger()
	vl := NewValidationLogger(log)

	vl.LogAdjustment("session_1", 2, errors.New("hook unavailable"))
	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])
	assert.Equal(t, "hook unavailable", logEntry["error"])
	assert.Equal(t, float64(2), logEntry["adjustments_made"])

	buf.Reset()
	vl.LogAdjustment("session_1", 3, nil)
	logEntry = parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "info", logEntry["level"])
	assert.NotContains(t, logEntry, "error")
}

func TestValidationLoggerSessionError(t *testing.T) {
	log, buf := setupTestLogger()
	NewValidationLogger(log).LogSessionError("session_1", errors.New("connection refused"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "connection refused", logEntry["error"])
}

func TestValidationLoggerProgressIsDebug(t *testing.T) {
	log, buf := setupTestLogger()
	log.SetLevel(logrus.InfoLevel)

	NewValidationLogger(log).LogProgress("session_1", 3, 2, 1, 1.4, 30)
	assert.Empty(t, buf.String())
}

func TestAuditLoggerControlAction(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogControlAction("session_1", "pause", "alice", nil)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "pause", logEntry["action"])
	assert.Equal(t, "alice", logEntry["actor"])
	assert.Equal(t, "Session control action applied", logEntry["msg"])

	buf.Reset()
	auditLogger.LogControlAction("session_1", "resume", "alice", errors.New("invalid session state transition"))
	logEntry = parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "Session control action rejected", logEntry["msg"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestAuditLoggerSessionStarted(t *testing.T) {
	log, buf := setupTestLogger()
	NewAuditLogger(log).LogSessionStarted("session_1", "mean-reversion-v2", "scheduler", 20, 90, true)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "mean-reversion-v2", logEntry["strategy_id"])
	assert.Equal(t, "scheduler", logEntry["actor"])
	assert.Equal(t, float64(20), logEntry["max_total_tests"])
	assert.Equal(t, true, logEntry["auto_adjust"])
}

func TestNewLogger(t *testing.T) {
	log := NewLogger("debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = NewLogger("not-a-level")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	assert.Equal(t, io.Discard, NewNopLogger().Out)
}
