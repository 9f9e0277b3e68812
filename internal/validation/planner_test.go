package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/strategy-validator/internal/models"
)

func withReturns(returns ...float64) []*models.TestRun {
	runs := make([]*models.TestRun, 0, len(returns))
	for _, r := range returns {
		runs = append(runs, completedRun(models.NewRunResult(1.0, r, -0.1, 0.5)))
	}
	return newestFirst(runs...)
}

func TestNextWindow(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		defaultDay int
		history    []*models.TestRun
		autoAdjust bool
		wantDays   int
	}{
		{"no history", 90, nil, true, 90},
		{"poor returns shrink", 90, withReturns(-0.2), true, 75},
		{"strong returns grow", 90, withReturns(0.2), true, 105},
		{"mid band unchanged", 90, withReturns(0.05, -0.05), true, 90},
		{"on threshold unchanged", 90, withReturns(0.1), true, 90},
		{"auto adjust off", 90, withReturns(-0.5), false, 90},
		{"floor", 40, withReturns(-0.3), true, 30},
		{"cap", 175, withReturns(0.5), true, 180},
		{"metricless runs ignored", 90, []*models.TestRun{failedRun(models.FailureTimeout)}, true, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NextWindow(tt.defaultDay, tt.history, tt.autoAdjust, now)
			assert.Equal(t, tt.wantDays, w.Days())
			assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), w.EndDate)
			assert.True(t, w.StartDate.Before(w.EndDate))
		})
	}
}

func TestNextWindowLooksAtRecentFiveRuns(t *testing.T) {
	now := time.Now()

	// oldest to newest: a disastrous old run followed by five strong ones
	history := withReturns(-5.0, 0.2, 0.2, 0.2, 0.2, 0.2)
	assert.Equal(t, 105, NextWindow(90, history, true, now).Days())

	// six runs, newest five average -0.12
	history = withReturns(0.9, -0.1, -0.1, -0.1, -0.1, -0.2)
	assert.Equal(t, 75, NextWindow(90, history, true, now).Days())
}

func TestNextWindowSkipsMetriclessRunsWithinLookback(t *testing.T) {
	now := time.Now()

	// oldest to newest: one strong run, then four timeouts and one weak run.
	// The strong run sits outside the five newest entries and is not used.
	history := newestFirst(
		completedRun(models.NewRunResult(1.0, 0.9, -0.1, 0.5)),
		failedRun(models.FailureTimeout),
		failedRun(models.FailureTimeout),
		failedRun(models.FailureTimeout),
		failedRun(models.FailureTimeout),
		completedRun(models.NewRunResult(1.0, -0.2, -0.1, 0.5)),
	)
	assert.Equal(t, 75, NextWindow(90, history, true, now).Days())
}
