package validation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/strategy-validator/internal/models"
)

// outcome scripts what the fake service does for one submission.
type outcome struct {
	metrics    *models.RunResult
	status     ExecutionStatus // defaults to complete
	message    string
	submitErr  error
	pollPanic  bool
	hang       bool // pending until released
	emptyPolls int  // complete-without-metrics polls before the real answer
}

// fakeService is a scriptable ExecutionService. Submissions beyond the
// script reuse the last outcome.
type fakeService struct {
	mu       sync.Mutex
	script   []outcome
	requests []BacktestRequest
	handles  map[string]int
	polls    map[string]int
	released bool
}

func newFakeService(script ...outcome) *fakeService {
	return &fakeService{
		script:  script,
		handles: make(map[string]int),
		polls:   make(map[string]int),
	}
}

func (f *fakeService) Submit(ctx context.Context, req BacktestRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.requests)
	f.requests = append(f.requests, req)
	o := f.outcomeAt(idx)
	if o.submitErr != nil {
		return "", o.submitErr
	}

	handle := fmt.Sprintf("bt-%d", idx)
	f.handles[handle] = idx
	return handle, nil
}

func (f *fakeService) Poll(ctx context.Context, handle string) (PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, ok := f.handles[handle]
	if !ok {
		return PollResult{}, fmt.Errorf("unknown handle %s", handle)
	}
	f.polls[handle]++
	o := f.outcomeAt(idx)

	switch {
	case o.pollPanic:
		panic("backtest engine exploded")
	case o.hang && !f.released:
		return PollResult{Status: ExecutionPending}, nil
	case f.polls[handle] <= o.emptyPolls:
		return PollResult{Status: ExecutionComplete}, nil
	}

	status := o.status
	if status == "" {
		status = ExecutionComplete
	}
	return PollResult{Status: status, Metrics: o.metrics.Clone(), Message: o.message}, nil
}

func (f *fakeService) outcomeAt(idx int) outcome {
	if len(f.script) == 0 {
		return outcome{metrics: passing(2.0)}
	}
	if idx >= len(f.script) {
		return f.script[len(f.script)-1]
	}
	return f.script[idx]
}

// release lets hanging outcomes complete.
func (f *fakeService) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

func (f *fakeService) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// passing returns metrics that clear the default criteria except possibly sharpe.
func passing(sharpe float64) *models.RunResult {
	return models.NewRunResult(sharpe, 0.2, -0.1, 0.6)
}

func failing() *models.RunResult {
	return models.NewRunResult(0.4, -0.05, -0.3, 0.4)
}

// testConfig returns a fast session config.
func testConfig() models.SessionConfig {
	cfg := DefaultSessionConfig("mean-reversion-v2")
	cfg.PacingInterval = 0
	cfg.PollInterval = time.Millisecond
	cfg.RunTimeout = 2 * time.Second
	cfg.AutoAdjust = false
	return cfg
}

func newTestSession(t *testing.T, cfg models.SessionConfig, service ExecutionService, adjuster Adjuster) *Session {
	t.Helper()
	s, err := NewSession(cfg, Options{Service: service, Adjuster: adjuster})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// completedRun builds a terminal run with metrics for pure-function tests.
func completedRun(result *models.RunResult) *models.TestRun {
	now := time.Now()
	run := models.NewTestRun("run", models.Window{StartDate: now.AddDate(0, 0, -90), EndDate: now}, now)
	run.MarkRunning("h", now)
	run.Complete(result, now)
	return run
}

func failedRun(reason models.FailureReason) *models.TestRun {
	now := time.Now()
	run := models.NewTestRun("run", models.Window{StartDate: now.AddDate(0, 0, -90), EndDate: now}, now)
	run.Fail(reason, "boom", now)
	return run
}

// newestFirst turns an oldest-to-newest list into session order.
func newestFirst(runs ...*models.TestRun) []*models.TestRun {
	out := make([]*models.TestRun, len(runs))
	for i, run := range runs {
		out[len(runs)-1-i] = run
	}
	return out
}
