package validation

import (
	"context"

	"github.com/yourusername/strategy-validator/internal/models"
)

// ExecutionStatus is the state reported by the backtest service for a handle.
type ExecutionStatus string

const (
	ExecutionPending  ExecutionStatus = "pending"
	ExecutionComplete ExecutionStatus = "complete"
	ExecutionError    ExecutionStatus = "error"
)

// BacktestRequest is what gets submitted for one run.
type BacktestRequest struct {
	RunID      string `json:"run_id"`
	StrategyID string `json:"strategy_id"`
	Label      string `json:"label"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// PollResult is one status report for a submitted backtest.
type PollResult struct {
	Status  ExecutionStatus   `json:"status"`
	Metrics *models.RunResult `json:"metrics,omitempty"`
	Message string            `json:"message,omitempty"`
}

// ExecutionService runs backtests. Submit errors wrapping
// ErrSubmissionRejected fail the run; any other error stops the session.
type ExecutionService interface {
	Submit(ctx context.Context, req BacktestRequest) (string, error)
	Poll(ctx context.Context, handle string) (PollResult, error)
}

// Adjuster is notified after a failed run when auto-adjust is enabled.
type Adjuster interface {
	Adjust(ctx context.Context, snapshot models.SessionSnapshot) error
}

// AdjusterFunc adapts a function to the Adjuster interface.
type AdjusterFunc func(ctx context.Context, snapshot models.SessionSnapshot) error

// Adjust calls f.
func (f AdjusterFunc) Adjust(ctx context.Context, snapshot models.SessionSnapshot) error {
	return f(ctx, snapshot)
}

func newRequest(strategyID string, run *models.TestRun) BacktestRequest {
	return BacktestRequest{
		RunID:      run.ID.String(),
		StrategyID: strategyID,
		Label:      run.Label,
		StartDate:  run.Window.StartDate.Format(models.DateLayout),
		EndDate:    run.Window.EndDate.Format(models.DateLayout),
	}
}
