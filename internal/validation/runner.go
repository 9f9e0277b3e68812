package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/models"
)

// Runner drives one TestRun from queued to a terminal state against the
// execution service. At most one Execute call is in flight per session.
type Runner struct {
	service      ExecutionService
	strategyID   string
	sessionID    string
	timeout      time.Duration
	pollInterval time.Duration
	logger       *logger.ValidationLogger
	now          func() time.Time
}

// NewRunner creates a runner bound to one session.
func NewRunner(service ExecutionService, sessionID string, cfg models.SessionConfig, log *logger.ValidationLogger) *Runner {
	return &Runner{
		service:      service,
		strategyID:   cfg.StrategyID,
		sessionID:    sessionID,
		timeout:      cfg.RunTimeout,
		pollInterval: cfg.PollInterval,
		logger:       log,
		now:          time.Now,
	}
}

// Execute submits run (unless it already holds a handle) and polls until the
// run is terminal. notify receives a copy after every transition.
//
// Submission and polling are each bounded by the run timeout. A cancelled ctx
// leaves the run non-terminal and returns ctx.Err(); executing it again
// resumes polling the same handle with a fresh timeout. Any other
// returned error is unclassified and fatal to the session.
func (r *Runner) Execute(ctx context.Context, run *models.TestRun, notify func(*models.TestRun)) (*models.TestRun, error) {
	if run.Status.IsTerminal() {
		return run, nil
	}

	if run.Status == models.RunQueued {
		submitCtx, cancel := context.WithTimeout(ctx, r.timeout)
		handle, err := r.service.Submit(submitCtx, newRequest(r.strategyID, run))
		expired := submitCtx.Err() != nil
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return run, ctx.Err()
			}
			if expired {
				run.Fail(models.FailureTimeout, fmt.Sprintf("submission not accepted within %s", r.timeout), r.now())
				notify(run.Clone())
				return run, nil
			}
			if errors.Is(err, ErrSubmissionRejected) {
				run.Fail(models.FailureRejected, err.Error(), r.now())
				notify(run.Clone())
				return run, nil
			}
			return run, fmt.Errorf("submit run %s: %w", run.ID, err)
		}
		run.MarkRunning(handle, r.now())
		r.logger.LogRunSubmitted(r.sessionID, run.ID.String(), handle)
		notify(run.Clone())
	}

	return r.await(ctx, run, notify)
}

// await races the poll ticker against the run deadline.
func (r *Runner) await(ctx context.Context, run *models.TestRun, notify func(*models.TestRun)) (*models.TestRun, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return r.expire(ctx, run, notify)

		case <-ticker.C:
			res, err := r.service.Poll(runCtx, run.Handle)
			if runCtx.Err() != nil {
				// the deadline or a cancellation won the race; a late result is dropped
				return r.expire(ctx, run, notify)
			}
			if err != nil {
				return run, fmt.Errorf("poll run %s (handle %s): %w", run.ID, run.Handle, err)
			}

			switch res.Status {
			case ExecutionComplete:
				if res.Metrics.IsEmpty() {
					continue
				}
				run.Complete(res.Metrics.Clone(), r.now())
				notify(run.Clone())
				return run, nil
			case ExecutionError:
				msg := res.Message
				if msg == "" {
					msg = "backtest service reported an error"
				}
				run.Fail(models.FailureExecution, msg, r.now())
				notify(run.Clone())
				return run, nil
			}
		}
	}
}

// expire resolves a finished run context: parent cancellation is passed
// through, otherwise the run timed out.
func (r *Runner) expire(ctx context.Context, run *models.TestRun, notify func(*models.TestRun)) (*models.TestRun, error) {
	if ctx.Err() != nil {
		return run, ctx.Err()
	}
	run.Fail(models.FailureTimeout, fmt.Sprintf("no result within %s", r.timeout), r.now())
	notify(run.Clone())
	return run, nil
}
