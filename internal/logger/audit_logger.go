// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogControlAction logs a control-surface action against a session.
func (al *AuditLogger) LogControlAction(sessionID, action, actor string, err error) {
	entry := al.WithFields(logrus.Fields{
		"session_id": sessionID,
		"action":     action,
		"actor":      actor,
	})
	if err != nil {
		entry.WithError(err).Warn("Session control action rejected")
		return
	}
	entry.Info("Session control action applied")
}

// LogSessionStarted logs the configuration a session was started with.
func (al *AuditLogger) LogSessionStarted(sessionID, strategyID, actor string, maxTests, windowDays int, autoAdjust bool) {
	al.WithFields(logrus.Fields{
		"session_id":          sessionID,
		"strategy_id":         strategyID,
		"actor":               actor,
		"max_total_tests":     maxTests,
		"default_window_days": windowDays,
		"auto_adjust":         autoAdjust,
	}).Info("Validation session started")
}
