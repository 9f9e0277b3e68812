package models

import "fmt"

// ProfitabilityCriteria holds the thresholds a run, and a streak of runs,
// must clear. It is immutable for the lifetime of a session.
type ProfitabilityCriteria struct {
	MinSharpeRatio       float64 `json:"min_sharpe_ratio"`
	MinWinRate           float64 `json:"min_win_rate"`
	MinTotalReturn       float64 `json:"min_total_return"`
	MaxDrawdownThreshold float64 `json:"max_drawdown_threshold"`
	MinConsecutivePasses int     `json:"min_consecutive_passes"`
	MinTotalRuns         int     `json:"min_total_runs"`
}

// DefaultCriteria returns the stock profitability rubric.
func DefaultCriteria() ProfitabilityCriteria {
	return ProfitabilityCriteria{
		MinSharpeRatio:       1.5,
		MinWinRate:           0.55,
		MinTotalReturn:       0.10,
		MaxDrawdownThreshold: 0.20,
		MinConsecutivePasses: 3,
		MinTotalRuns:         5,
	}
}

// Validate checks the criteria invariants.
func (c ProfitabilityCriteria) Validate() error {
	if c.MinSharpeRatio < 0 || c.MinWinRate < 0 || c.MinTotalReturn < 0 || c.MaxDrawdownThreshold < 0 {
		return fmt.Errorf("%w: thresholds must be non-negative", ErrInvalidCriteria)
	}
	if c.MinConsecutivePasses < 1 || c.MinTotalRuns < 1 {
		return fmt.Errorf("%w: min_consecutive_passes and min_total_runs must be at least 1", ErrInvalidCriteria)
	}
	if c.MinConsecutivePasses > c.MinTotalRuns {
		return fmt.Errorf("%w: min_consecutive_passes (%d) exceeds min_total_runs (%d)",
			ErrInvalidCriteria, c.MinConsecutivePasses, c.MinTotalRuns)
	}
	return nil
}
