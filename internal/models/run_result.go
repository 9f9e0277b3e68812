package models

import "math"

// RunResult is the metrics bundle reported by the backtest service for one run.
// A nil field means the service did not report that metric.
type RunResult struct {
	SharpeRatio *float64 `json:"sharpe_ratio,omitempty"`
	TotalReturn *float64 `json:"total_return,omitempty"`
	MaxDrawdown *float64 `json:"max_drawdown,omitempty"`
	WinRate     *float64 `json:"win_rate,omitempty"`
}

// NewRunResult builds a fully populated result.
func NewRunResult(sharpe, totalReturn, maxDrawdown, winRate float64) *RunResult {
	return &RunResult{
		SharpeRatio: &sharpe,
		TotalReturn: &totalReturn,
		MaxDrawdown: &maxDrawdown,
		WinRate:     &winRate,
	}
}

// IsEmpty reports whether the payload carries no metric at all.
func (r *RunResult) IsEmpty() bool {
	return r == nil || (r.SharpeRatio == nil && r.TotalReturn == nil && r.MaxDrawdown == nil && r.WinRate == nil)
}

// Sharpe returns the sharpe ratio, or 0 when missing.
func (r *RunResult) Sharpe() float64 {
	if r == nil || r.SharpeRatio == nil {
		return 0
	}
	return *r.SharpeRatio
}

// Return returns the total return, or 0 when missing.
func (r *RunResult) Return() float64 {
	if r == nil || r.TotalReturn == nil {
		return 0
	}
	return *r.TotalReturn
}

// Win returns the win rate, or 0 when missing.
func (r *RunResult) Win() float64 {
	if r == nil || r.WinRate == nil {
		return 0
	}
	return *r.WinRate
}

// Drawdown returns the drawdown magnitude, or +Inf when missing.
func (r *RunResult) Drawdown() float64 {
	if r == nil || r.MaxDrawdown == nil {
		return math.Inf(1)
	}
	return math.Abs(*r.MaxDrawdown)
}

// Clone returns a deep copy.
func (r *RunResult) Clone() *RunResult {
	if r == nil {
		return nil
	}
	return &RunResult{
		SharpeRatio: cloneFloat(r.SharpeRatio),
		TotalReturn: cloneFloat(r.TotalReturn),
		MaxDrawdown: cloneFloat(r.MaxDrawdown),
		WinRate:     cloneFloat(r.WinRate),
	}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
