// Package logger provides validation-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// ValidationLogger provides dedicated logging for validation sessions.
type ValidationLogger struct {
	*logrus.Entry
}

// NewValidationLogger creates a new validation logger.
func NewValidationLogger(baseLogger *logrus.Logger) *ValidationLogger {
	return &ValidationLogger{
		Entry: baseLogger.WithField("component", "validation"),
	}
}

// LogRunQueued logs a run entering the queue.
func (vl *ValidationLogger) LogRunQueued(sessionID, runID, label, window string, windowDays int) {
	vl.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"run_id":      runID,
		"label":       label,
		"window":      window,
		"window_days": windowDays,
	}).Info("Test run queued")
}

// LogRunSubmitted logs submission acceptance by the backtest service.
func (vl *ValidationLogger) LogRunSubmitted(sessionID, runID, handle string) {
	vl.WithFields(logrus.Fields{
		"session_id": sessionID,
		"run_id":     runID,
		"handle":     handle,
	}).Info("Test run submitted")
}

// LogRunCompleted logs a run that produced metrics.
func (vl *ValidationLogger) LogRunCompleted(sessionID, runID string, passed bool, sharpe, totalReturn float64, durationSeconds float64) {
	entry := vl.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"run_id":       runID,
		"passed":       passed,
		"sharpe_ratio": sharpe,
		"total_return": totalReturn,
		"duration_s":   durationSeconds,
	})
	if passed {
		entry.Info("Test run passed criteria")
		return
	}
	entry.Warn("Test run missed criteria")
}

// LogRunFailed logs a run that ended without metrics.
func (vl *ValidationLogger) LogRunFailed(sessionID, runID, reason, message string) {
	vl.WithFields(logrus.Fields{
		"session_id":     sessionID,
		"run_id":         runID,
		"failure_reason": reason,
		"message":        message,
	}).Warn("Test run failed")
}

// LogSessionTransition logs a session status change.
func (vl *ValidationLogger) LogSessionTransition(sessionID, from, to, reason string) {
	vl.WithFields(logrus.Fields{
		"session_id": sessionID,
		"from":       from,
		"to":         to,
		"reason":     reason,
	}).Info("Session status changed")
}

// LogProgress logs rolling statistics after a run.
func (vl *ValidationLogger) LogProgress(sessionID string, totalRuns, passedRuns, consecutivePasses int, avgSharpe, learningProgress float64) {
	vl.WithFields(logrus.Fields{
		"session_id":         sessionID,
		"total_runs":         totalRuns,
		"passed_runs":        passedRuns,
		"consecutive_passes": consecutivePasses,
		"avg_sharpe":         avgSharpe,
		"learning_progress":  learningProgress,
	}).Debug("Session statistics updated")
}

// LogAdjustment logs a strategy adjustment trigger.
func (vl *ValidationLogger) LogAdjustment(sessionID string, adjustmentsMade int, err error) {
	entry := vl.WithFields(logrus.Fields{
		"session_id":       sessionID,
		"adjustments_made": adjustmentsMade,
	})
	if err != nil {
		entry.WithError(err).Warn("Strategy adjustment hook failed")
		return
	}
	entry.Info("Strategy adjustment triggered")
}

// LogSessionError logs a session-fatal error.
func (vl *ValidationLogger) LogSessionError(sessionID string, err error) {
	vl.WithFields(logrus.Fields{
		"session_id": sessionID,
	}).WithError(err).Error("Validation session stopped on error")
}
