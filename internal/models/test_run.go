package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used for backtest windows.
const DateLayout = "2006-01-02"

// RunStatus is the lifecycle state of a TestRun.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// FailureReason distinguishes execution failures. Evaluation failures are
// completed runs with Passed=false and carry no failure reason.
type FailureReason string

const (
	FailureNone      FailureReason = ""
	FailureRejected  FailureReason = "rejected"
	FailureExecution FailureReason = "execution_error"
	FailureTimeout   FailureReason = "timeout"
	FailureCancelled FailureReason = "cancelled"
)

// Window is the backtest date range, StartDate before EndDate.
type Window struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Days returns the window length in whole days.
func (w Window) Days() int {
	return int(w.EndDate.Sub(w.StartDate).Hours() / 24)
}

// String renders the window as "start..end".
func (w Window) String() string {
	return w.StartDate.Format(DateLayout) + ".." + w.EndDate.Format(DateLayout)
}

// TestRun is one attempted backtest.
type TestRun struct {
	ID            uuid.UUID     `json:"id"`
	Label         string        `json:"label"`
	Window        Window        `json:"window"`
	Status        RunStatus     `json:"status"`
	Handle        string        `json:"handle,omitempty"`
	Result        *RunResult    `json:"result,omitempty"`
	Passed        bool          `json:"passed"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	Message       string        `json:"message,omitempty"`
	QueuedAt      time.Time     `json:"queued_at"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// NewTestRun creates a queued run for the given window.
func NewTestRun(label string, window Window, now time.Time) *TestRun {
	return &TestRun{
		ID:       uuid.New(),
		Label:    label,
		Window:   window,
		Status:   RunQueued,
		QueuedAt: now,
	}
}

// MarkRunning records submission acceptance. It is a no-op unless queued.
func (r *TestRun) MarkRunning(handle string, now time.Time) bool {
	if r.Status != RunQueued {
		return false
	}
	r.Status = RunRunning
	r.Handle = handle
	r.SubmittedAt = &now
	return true
}

// Complete moves the run to completed with the given metrics. A run that is
// already terminal is left untouched and false is returned.
func (r *TestRun) Complete(result *RunResult, now time.Time) bool {
	if r.Status.IsTerminal() {
		return false
	}
	r.Status = RunCompleted
	r.Result = result
	r.CompletedAt = &now
	return true
}

// Fail moves the run to failed. A run that is already terminal is left
// untouched and false is returned.
func (r *TestRun) Fail(reason FailureReason, message string, now time.Time) bool {
	if r.Status.IsTerminal() {
		return false
	}
	r.Status = RunFailed
	r.FailureReason = reason
	r.Message = message
	r.Passed = false
	r.CompletedAt = &now
	return true
}

// HasMetrics reports whether the run produced a metrics payload.
func (r *TestRun) HasMetrics() bool {
	return r.Status == RunCompleted && !r.Result.IsEmpty()
}

// Clone returns a deep copy safe to hand to readers.
func (r *TestRun) Clone() *TestRun {
	if r == nil {
		return nil
	}
	c := *r
	c.Result = r.Result.Clone()
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		c.SubmittedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
