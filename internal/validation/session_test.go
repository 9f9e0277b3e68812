package validation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/strategy-validator/internal/models"
)

func waitForStatus(t *testing.T, s *Session, want models.SessionStatus) models.SessionSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().Status == want
	}, 5*time.Second, 2*time.Millisecond, "session never reached %s", want)
	if want != models.SessionRunning {
		s.Wait()
	}
	return s.Snapshot()
}

// waitForInFlight waits until the queued run has been submitted.
func waitForInFlight(t *testing.T, s *Session) *models.TestRun {
	t.Helper()
	var run *models.TestRun
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		if len(snap.Queue) == 0 || snap.Queue[0].Status != models.RunRunning {
			return false
		}
		run = snap.Queue[0]
		return true
	}, 5*time.Second, 2*time.Millisecond)
	return run
}

func TestSessionReachesProfitability(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 10
	cfg.Criteria.MinTotalRuns = 3
	cfg.Criteria.MinConsecutivePasses = 2
	cfg.Criteria.MinSharpeRatio = 1.5

	service := newFakeService(
		outcome{metrics: passing(1.6)},
		outcome{metrics: passing(0.5)},
		outcome{metrics: passing(1.8)},
		outcome{metrics: passing(2.0)},
		outcome{metrics: passing(1.9)},
	)
	s := newTestSession(t, cfg, service, nil)
	require.NoError(t, s.Start())

	snap := waitForStatus(t, s, models.SessionProfitable)
	assert.Equal(t, 5, snap.RunsExecuted)
	assert.Equal(t, 5, service.submissions())
	assert.Equal(t, 100.0, snap.LearningProgress)
	assert.Equal(t, 4, snap.Stats.PassedRuns)
	assert.Equal(t, 3, snap.Stats.ConsecutivePasses)
	assert.Empty(t, snap.Queue)
	assert.Len(t, snap.Insights, 5)

	require.Len(t, snap.History, 5)
	assert.Equal(t, "Validation run 5", snap.History[0].Label)
	assert.Equal(t, "Validation run 1", snap.History[4].Label)
	assert.True(t, snap.History[0].Passed)
	assert.False(t, snap.History[3].Passed)
}

func TestSessionCompletesAtMaxTests(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 3

	var terminal []models.SessionSnapshot
	s, err := NewSession(cfg, Options{
		Service:    newFakeService(outcome{metrics: failing()}),
		OnTerminal: func(snap models.SessionSnapshot) { terminal = append(terminal, snap) },
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	snap := waitForStatus(t, s, models.SessionCompleted)
	assert.Equal(t, 3, snap.RunsExecuted)
	assert.Len(t, snap.History, 3)
	assert.Equal(t, 3, snap.Stats.ConsecutiveFails)
	assert.Less(t, snap.LearningProgress, 100.0)

	require.Len(t, terminal, 1)
	assert.Equal(t, models.SessionCompleted, terminal[0].Status)
}

func TestSessionRejectionMovesOn(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 2
	cfg.StopOnProfitability = false

	service := newFakeService(
		outcome{submitErr: fmt.Errorf("%w: strategy unknown", ErrSubmissionRejected)},
		outcome{metrics: passing(2.0)},
	)
	s := newTestSession(t, cfg, service, nil)
	require.NoError(t, s.Start())

	snap := waitForStatus(t, s, models.SessionCompleted)
	require.Len(t, snap.History, 2)
	assert.Equal(t, models.RunCompleted, snap.History[0].Status)
	assert.Equal(t, models.FailureRejected, snap.History[1].FailureReason)
	assert.Contains(t, snap.Insights[0], "rejected by backtest service")
	assert.Empty(t, snap.LastError)
}

func TestSessionStopsOnFatalError(t *testing.T) {
	service := newFakeService(outcome{submitErr: errors.New("connection refused")})
	s := newTestSession(t, testConfig(), service, nil)
	require.NoError(t, s.Start())

	snap := waitForStatus(t, s, models.SessionStopped)
	assert.Contains(t, snap.LastError, "connection refused")
	require.Len(t, snap.History, 1)
	assert.Equal(t, models.FailureExecution, snap.History[0].FailureReason)
	assert.Equal(t, 1, snap.RunsExecuted)
	assert.Empty(t, snap.Queue)
}

func TestSessionRecoversPanics(t *testing.T) {
	s := newTestSession(t, testConfig(), newFakeService(outcome{pollPanic: true}), nil)
	require.NoError(t, s.Start())

	snap := waitForStatus(t, s, models.SessionStopped)
	assert.Contains(t, snap.LastError, "panic")
	require.Len(t, snap.History, 1)
	assert.Equal(t, models.FailureExecution, snap.History[0].FailureReason)
}

func TestSessionTimeoutInsight(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 1
	cfg.RunTimeout = 20 * time.Millisecond

	s := newTestSession(t, cfg, newFakeService(outcome{metrics: passing(2.0), hang: true}), nil)
	require.NoError(t, s.Start())

	snap := waitForStatus(t, s, models.SessionCompleted)
	require.Len(t, snap.History, 1)
	assert.Equal(t, models.FailureTimeout, snap.History[0].FailureReason)
	assert.Contains(t, snap.Insights[0], "timed out")
	assert.Equal(t, 1, snap.Stats.FailedRuns)
}

func TestSessionPauseResumeKeepsInFlightRun(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 1

	service := newFakeService(outcome{metrics: passing(2.0), hang: true})
	s := newTestSession(t, cfg, service, nil)
	require.NoError(t, s.Start())

	inFlight := waitForInFlight(t, s)
	require.NoError(t, s.Pause())

	snap := s.Snapshot()
	assert.Equal(t, models.SessionPaused, snap.Status)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, inFlight.ID, snap.Queue[0].ID)
	assert.False(t, snap.IsProcessing())

	service.release()
	require.NoError(t, s.Resume())

	snap = waitForStatus(t, s, models.SessionCompleted)
	require.Len(t, snap.History, 1)
	assert.Equal(t, inFlight.ID, snap.History[0].ID)
	assert.Equal(t, models.RunCompleted, snap.History[0].Status)
	assert.Equal(t, 1, service.submissions())
}

func TestSessionStopCancelsQueuedRun(t *testing.T) {
	service := newFakeService(outcome{metrics: passing(2.0), hang: true})
	s := newTestSession(t, testConfig(), service, nil)
	require.NoError(t, s.Start())

	waitForInFlight(t, s)
	require.NoError(t, s.Stop())

	snap := s.Snapshot()
	assert.Equal(t, models.SessionStopped, snap.Status)
	assert.Empty(t, snap.Queue)
	require.Len(t, snap.History, 1)
	assert.Equal(t, models.FailureCancelled, snap.History[0].FailureReason)
	assert.Equal(t, 1, snap.Stats.TotalRuns)
	assert.Equal(t, 0, snap.Stats.FailedRuns)
	assert.Equal(t, 0, snap.RunsExecuted)

	assert.NoError(t, s.Stop(), "stopping a finished session is a no-op")
}

func TestSessionReset(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 2
	service := newFakeService(outcome{metrics: failing()})
	s := newTestSession(t, cfg, service, nil)

	require.NoError(t, s.Start())
	waitForStatus(t, s, models.SessionCompleted)

	require.NoError(t, s.Reset())
	snap := s.Snapshot()
	assert.Equal(t, models.SessionIdle, snap.Status)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.Queue)
	assert.Empty(t, snap.Insights)
	assert.Zero(t, snap.RunsExecuted)
	assert.Zero(t, snap.LearningProgress)
	assert.Equal(t, models.SessionStats{}, snap.Stats)

	require.NoError(t, s.Start())
	snap = waitForStatus(t, s, models.SessionCompleted)
	assert.Equal(t, 2, snap.RunsExecuted)
	assert.Equal(t, 4, service.submissions())
}

func TestSessionResetWhileRunning(t *testing.T) {
	s := newTestSession(t, testConfig(), newFakeService(outcome{metrics: passing(2.0), hang: true}), nil)
	require.NoError(t, s.Start())
	waitForInFlight(t, s)

	require.NoError(t, s.Reset())
	snap := s.Snapshot()
	assert.Equal(t, models.SessionIdle, snap.Status)
	assert.Empty(t, snap.Queue)
	assert.Empty(t, snap.History)
}

func TestSessionInvalidTransitions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 1
	s := newTestSession(t, cfg, newFakeService(), nil)

	assert.ErrorIs(t, s.Pause(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Resume(), ErrInvalidTransition)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrInvalidTransition)

	waitForStatus(t, s, models.SessionCompleted)
	assert.ErrorIs(t, s.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Pause(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Resume(), ErrInvalidTransition)
	assert.NoError(t, s.Stop())
	assert.Equal(t, models.SessionCompleted, s.Snapshot().Status)
}

func TestSessionAdjustsAfterEvaluationFailures(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 4
	cfg.AutoAdjust = true
	cfg.StopOnProfitability = false

	var calls atomic.Int32
	adjuster := AdjusterFunc(func(ctx context.Context, snap models.SessionSnapshot) error {
		if calls.Add(1) == 1 {
			return errors.New("strategy service unavailable")
		}
		return nil
	})

	service := newFakeService(
		outcome{metrics: failing()},
		outcome{submitErr: fmt.Errorf("%w: bad window", ErrSubmissionRejected)},
		outcome{metrics: failing()},
		outcome{metrics: passing(2.0)},
	)
	s := newTestSession(t, cfg, service, adjuster)
	require.NoError(t, s.Start())

	snap := waitForStatus(t, s, models.SessionCompleted)
	assert.Equal(t, int32(2), calls.Load(), "only evaluation failures trigger an adjustment")
	assert.Equal(t, 2, snap.AdjustmentsMade, "a failed adjustment still counts")
}

func TestSessionCountsAdjustmentsWithoutHook(t *testing.T) {
	tests := []struct {
		name     string
		adjuster Adjuster
	}{
		{"no adjuster", nil},
		{"panicking adjuster", AdjusterFunc(func(ctx context.Context, snap models.SessionSnapshot) error {
			panic("tuner crashed")
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxTotalTests = 2
			cfg.AutoAdjust = true
			cfg.StopOnProfitability = false

			s := newTestSession(t, cfg, newFakeService(outcome{metrics: failing()}), tt.adjuster)
			require.NoError(t, s.Start())

			snap := waitForStatus(t, s, models.SessionCompleted)
			assert.Equal(t, 2, snap.AdjustmentsMade)
			assert.Empty(t, snap.LastError)
		})
	}
}

// waitForQueued waits until a run sits in the queue without a handle.
func waitForQueued(t *testing.T, s *Session) *models.TestRun {
	t.Helper()
	var run *models.TestRun
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		if len(snap.Queue) == 0 || snap.Queue[0].Status != models.RunQueued {
			return false
		}
		run = snap.Queue[0]
		return true
	}, 5*time.Second, 2*time.Millisecond)
	return run
}

func TestSessionPauseDuringPacingDelay(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 1
	cfg.PacingInterval = 200 * time.Millisecond

	service := newFakeService()
	s := newTestSession(t, cfg, service, nil)
	require.NoError(t, s.Start())

	queued := waitForQueued(t, s)
	time.Sleep(50 * time.Millisecond)

	started := time.Now()
	require.NoError(t, s.Pause())
	assert.Less(t, time.Since(started), 150*time.Millisecond, "pause does not wait out the delay")

	snap := s.Snapshot()
	assert.Equal(t, models.SessionPaused, snap.Status)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, queued.ID, snap.Queue[0].ID)
	assert.Equal(t, models.RunQueued, snap.Queue[0].Status)

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, service.submissions(), "nothing is submitted while paused")

	require.NoError(t, s.Resume())
	snap = waitForStatus(t, s, models.SessionCompleted)
	assert.Equal(t, 1, service.submissions())
	require.Len(t, snap.History, 1)
	assert.Equal(t, queued.ID, snap.History[0].ID)
	assert.Equal(t, models.RunCompleted, snap.History[0].Status)
}

func TestSessionStopDuringPacingDelay(t *testing.T) {
	cfg := testConfig()
	cfg.PacingInterval = 200 * time.Millisecond

	service := newFakeService()
	s := newTestSession(t, cfg, service, nil)
	require.NoError(t, s.Start())

	queued := waitForQueued(t, s)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())

	snap := s.Snapshot()
	assert.Equal(t, models.SessionStopped, snap.Status)
	assert.Empty(t, snap.Queue)
	require.Len(t, snap.History, 1)
	assert.Equal(t, queued.ID, snap.History[0].ID)
	assert.Equal(t, models.FailureCancelled, snap.History[0].FailureReason)

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, service.submissions())
}

func TestSessionSubscribe(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalTests = 2
	s := newTestSession(t, cfg, newFakeService(), nil)

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	first := <-updates
	assert.Equal(t, models.SessionIdle, first.Status)

	require.NoError(t, s.Start())

	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Status == models.SessionCompleted {
				assert.Equal(t, 2, snap.RunsExecuted)
				return
			}
		case <-timeout:
			t.Fatal("no terminal snapshot received")
		}
	}
}

func TestSessionUnsubscribeIsIdempotent(t *testing.T) {
	s := newTestSession(t, testConfig(), newFakeService(), nil)
	updates, unsubscribe := s.Subscribe()
	<-updates

	unsubscribe()
	unsubscribe()

	_, open := <-updates
	assert.False(t, open)
}

func TestSessionHistoryIsBounded(t *testing.T) {
	s := newTestSession(t, testConfig(), newFakeService(), nil)

	s.mu.Lock()
	var newest *models.TestRun
	for i := 0; i < 60; i++ {
		newest = completedRun(passing(2.0))
		s.pushHistory(newest)
		s.addInsight(fmt.Sprintf("insight %d", i))
	}
	s.mu.Unlock()

	history := s.History()
	require.Len(t, history, DefaultHistoryCapacity)
	assert.Equal(t, newest.ID, history[0].ID)

	insights := s.Snapshot().Insights
	require.Len(t, insights, insightCapacity)
	assert.Equal(t, "insight 59", insights[len(insights)-1])
	assert.Equal(t, "insight 10", insights[0])
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(testConfig(), Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := testConfig()
	cfg.MaxTotalTests = 0
	_, err = NewSession(cfg, Options{Service: newFakeService()})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testConfig()
	cfg.Criteria.MinConsecutivePasses = 9
	_, err = NewSession(cfg, Options{Service: newFakeService()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, models.ErrInvalidCriteria)
}
