package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the scheduler state of a validation session.
type SessionStatus string

const (
	SessionIdle       SessionStatus = "idle"
	SessionRunning    SessionStatus = "running"
	SessionPaused     SessionStatus = "paused"
	SessionStopped    SessionStatus = "stopped"
	SessionCompleted  SessionStatus = "completed"
	SessionProfitable SessionStatus = "profitable"
)

// IsTerminal reports whether the session has finished testing.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStopped || s == SessionCompleted || s == SessionProfitable
}

// SessionConfig configures one validation session.
type SessionConfig struct {
	StrategyID          string                `json:"strategy_id"`
	PacingInterval      time.Duration         `json:"pacing_interval"`
	MaxTotalTests       int                   `json:"max_total_tests"`
	DefaultWindowDays   int                   `json:"default_window_days"`
	AutoAdjust          bool                  `json:"auto_adjust"`
	StopOnProfitability bool                  `json:"stop_on_profitability"`
	RunTimeout          time.Duration         `json:"run_timeout"`
	PollInterval        time.Duration         `json:"poll_interval"`
	HistoryCapacity     int                   `json:"history_capacity"`
	Criteria            ProfitabilityCriteria `json:"criteria"`
}

// SessionStats are derived from the run history; never mutated independently.
type SessionStats struct {
	TotalRuns         int     `json:"total_runs"`
	PassedRuns        int     `json:"passed_runs"`
	FailedRuns        int     `json:"failed_runs"`
	AvgSharpe         float64 `json:"avg_sharpe"`
	AvgReturn         float64 `json:"avg_return"`
	BestSharpe        float64 `json:"best_sharpe"`
	WorstSharpe       float64 `json:"worst_sharpe"`
	ConsecutivePasses int     `json:"consecutive_passes"`
	ConsecutiveFails  int     `json:"consecutive_fails"`
}

// SessionSnapshot is a read-only copy of a session handed to callers.
type SessionSnapshot struct {
	ID               uuid.UUID     `json:"id"`
	Config           SessionConfig `json:"config"`
	Status           SessionStatus `json:"status"`
	Queue            []*TestRun    `json:"queue"`
	History          []*TestRun    `json:"history"`
	Stats            SessionStats  `json:"stats"`
	LearningProgress float64       `json:"learning_progress"`
	AdjustmentsMade  int           `json:"adjustments_made"`
	RunsExecuted     int           `json:"runs_executed"`
	Insights         []string      `json:"insights"`
	LastError        string        `json:"last_error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsProcessing is the presentation flag for "a run is in flight".
func (s SessionSnapshot) IsProcessing() bool {
	return s.Status == SessionRunning && len(s.Queue) > 0
}
