package validation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/strategy-validator/internal/models"
)

// Window adaptation band. Mean recent returns inside
// [negativeReturnThreshold, positiveReturnThreshold] leave the length unchanged.
const (
	trendLookback           = 5
	negativeReturnThreshold = -0.1
	positiveReturnThreshold = 0.1
	windowStepDays          = 15
	minWindowDays           = 30
	maxWindowDays           = 180
)

// NextWindow computes the input window for the next run. history is newest first.
func NextWindow(defaultDays int, history []*models.TestRun, autoAdjust bool, now time.Time) models.Window {
	days := defaultDays
	if autoAdjust {
		if avg, ok := recentMeanReturn(history); ok {
			switch {
			case avg < negativeReturnThreshold:
				days = max(minWindowDays, defaultDays-windowStepDays)
			case avg > positiveReturnThreshold:
				days = min(maxWindowDays, defaultDays+windowStepDays)
			}
		}
	}

	end := truncateToDate(now)
	return models.Window{
		StartDate: end.AddDate(0, 0, -days),
		EndDate:   end,
	}
}

// recentMeanReturn averages total_return over the most recent runs that
// reported one, looking at no more than trendLookback runs.
func recentMeanReturn(history []*models.TestRun) (float64, bool) {
	sum := decimal.Zero
	n := 0
	for i := 0; i < len(history) && i < trendLookback; i++ {
		run := history[i]
		if run == nil || !run.HasMetrics() || run.Result.TotalReturn == nil {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(*run.Result.TotalReturn))
		n++
	}
	if n == 0 {
		return 0, false
	}
	return mean(sum, n), true
}

func truncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
