// Package validation implements the adaptive strategy validation scheduler:
// run evaluation, rolling statistics, window planning, run orchestration and
// the per-session control loop.
package validation

import (
	"fmt"
	"math"

	"github.com/yourusername/strategy-validator/internal/models"
)

// Evaluate decides whether a single run clears the profitability criteria.
// Missing metrics take their worst value, so incomplete results never pass.
func Evaluate(result *models.RunResult, criteria models.ProfitabilityCriteria) bool {
	return len(FailureReasons(result, criteria)) == 0
}

// FailureReasons lists every threshold the result misses.
func FailureReasons(result *models.RunResult, criteria models.ProfitabilityCriteria) []string {
	if result.IsEmpty() {
		return []string{"no metrics reported"}
	}

	reasons := make([]string, 0, 4)
	if sharpe := result.Sharpe(); sharpe < criteria.MinSharpeRatio {
		reasons = append(reasons, fmt.Sprintf("sharpe %.2f < %.2f", sharpe, criteria.MinSharpeRatio))
	}
	if win := result.Win(); win < criteria.MinWinRate {
		reasons = append(reasons, fmt.Sprintf("win rate %.1f%% < %.1f%%", win*100, criteria.MinWinRate*100))
	}
	if ret := result.Return(); ret < criteria.MinTotalReturn {
		reasons = append(reasons, fmt.Sprintf("return %.1f%% < %.1f%%", ret*100, criteria.MinTotalReturn*100))
	}
	if dd := result.Drawdown(); dd > criteria.MaxDrawdownThreshold {
		if math.IsInf(dd, 1) {
			reasons = append(reasons, "drawdown missing")
		} else {
			reasons = append(reasons, fmt.Sprintf("drawdown %.1f%% > %.1f%%", dd*100, criteria.MaxDrawdownThreshold*100))
		}
	}
	return reasons
}
