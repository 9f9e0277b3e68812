package validation

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/strategy-validator/internal/models"
)

// Recompute derives session statistics from the run history. history is in
// session order (newest first); streaks are computed walking oldest to newest.
//
// Runs without metrics count toward FailedRuns (unless cancelled) but neither
// extend nor reset a streak.
func Recompute(history []*models.TestRun, criteria models.ProfitabilityCriteria) models.SessionStats {
	stats := models.SessionStats{TotalRuns: len(history)}

	sharpeSum := decimal.Zero
	returnSum := decimal.Zero
	sharpeCount := 0
	returnCount := 0

	for i := len(history) - 1; i >= 0; i-- {
		run := history[i]
		if run == nil {
			continue
		}

		if !run.HasMetrics() {
			if run.FailureReason != models.FailureCancelled {
				stats.FailedRuns++
			}
			continue
		}

		if Evaluate(run.Result, criteria) {
			stats.PassedRuns++
			stats.ConsecutivePasses++
			stats.ConsecutiveFails = 0
		} else {
			stats.FailedRuns++
			stats.ConsecutiveFails++
			stats.ConsecutivePasses = 0
		}

		if run.Result.SharpeRatio != nil {
			sharpe := *run.Result.SharpeRatio
			if sharpeCount == 0 || sharpe > stats.BestSharpe {
				stats.BestSharpe = sharpe
			}
			if sharpeCount == 0 || sharpe < stats.WorstSharpe {
				stats.WorstSharpe = sharpe
			}
			sharpeSum = sharpeSum.Add(decimal.NewFromFloat(sharpe))
			sharpeCount++
		}
		if run.Result.TotalReturn != nil {
			returnSum = returnSum.Add(decimal.NewFromFloat(*run.Result.TotalReturn))
			returnCount++
		}
	}

	stats.AvgSharpe = mean(sharpeSum, sharpeCount)
	stats.AvgReturn = mean(returnSum, returnCount)
	return stats
}

func mean(sum decimal.Decimal, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
}
