package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/yourusername/strategy-validator/internal/models"
)

// IsProfitable reports whether the history proves the strategy: enough runs,
// the most recent MinConsecutivePasses runs all pass, and the history-wide
// mean sharpe meets the minimum. history is newest first.
func IsProfitable(history []*models.TestRun, stats models.SessionStats, criteria models.ProfitabilityCriteria) bool {
	if len(history) < criteria.MinTotalRuns || len(history) < criteria.MinConsecutivePasses {
		return false
	}
	if recentPasses(history, criteria) < criteria.MinConsecutivePasses {
		return false
	}
	return stats.AvgSharpe >= criteria.MinSharpeRatio
}

// LearningProgress scores proximity to the profitability goal on 0-100.
// It is a presentation signal and never drives control decisions.
func LearningProgress(history []*models.TestRun, profitable bool, criteria models.ProfitabilityCriteria) float64 {
	n := float64(len(history))
	required := float64(criteria.MinTotalRuns)
	if n < required {
		return 50 * n / required
	}
	if profitable {
		return 100
	}
	window := float64(criteria.MinConsecutivePasses)
	progress := 50 + 30*n/required + 20*float64(recentPasses(history, criteria))/window
	return math.Min(99, progress)
}

// recentPasses counts passing runs among the most recent MinConsecutivePasses.
func recentPasses(history []*models.TestRun, criteria models.ProfitabilityCriteria) int {
	passes := 0
	for i := 0; i < len(history) && i < criteria.MinConsecutivePasses; i++ {
		if history[i].HasMetrics() && Evaluate(history[i].Result, criteria) {
			passes++
		}
	}
	return passes
}

// Insight renders the one-line, human-readable outcome of a terminal run.
func Insight(run *models.TestRun, criteria models.ProfitabilityCriteria) string {
	prefix := fmt.Sprintf("%s [%s]", run.Label, run.Window)

	if run.Status == models.RunFailed {
		switch run.FailureReason {
		case models.FailureTimeout:
			return fmt.Sprintf("%s timed out: %s", prefix, run.Message)
		case models.FailureRejected:
			return fmt.Sprintf("%s rejected by backtest service: %s", prefix, run.Message)
		case models.FailureCancelled:
			return fmt.Sprintf("%s cancelled: %s", prefix, run.Message)
		default:
			return fmt.Sprintf("%s execution failed: %s", prefix, run.Message)
		}
	}

	summary := fmt.Sprintf("sharpe %.2f, return %.1f%%, win rate %.1f%%",
		run.Result.Sharpe(), run.Result.Return()*100, run.Result.Win()*100)
	if run.Passed {
		return fmt.Sprintf("%s passed (%s)", prefix, summary)
	}
	return fmt.Sprintf("%s missed criteria: %s", prefix, strings.Join(FailureReasons(run.Result, criteria), "; "))
}
