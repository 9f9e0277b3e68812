package validation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/models"
)

const (
	insightCapacity  = 50
	subscriberBuffer = 8
)

// Options holds the collaborators of a session.
type Options struct {
	Service  ExecutionService
	Adjuster Adjuster
	Logger   *logger.ValidationLogger

	// OnTerminal is called with the session lock held when the session enters
	// a terminal status. It must not call back into the session.
	OnTerminal func(models.SessionSnapshot)
}

// Session is one validation session: a single control loop that plans, runs,
// scores and records backtests until the strategy is proven, the test budget
// is spent, or a caller stops it.
type Session struct {
	id         uuid.UUID
	cfg        models.SessionConfig
	runner     *Runner
	adjuster   Adjuster
	logger     *logger.ValidationLogger
	onTerminal func(models.SessionSnapshot)
	now        func() time.Time

	// ctrl serializes control actions so their cancel/wait phases never interleave.
	ctrl sync.Mutex

	mu           sync.Mutex
	status       models.SessionStatus
	queue        []*models.TestRun
	history      []*models.TestRun
	stats        models.SessionStats
	progress     float64
	adjustments  int
	runsExecuted int
	insights     []string
	lastErr      string
	createdAt    time.Time
	updatedAt    time.Time
	cancel       context.CancelFunc
	done         chan struct{}
	subscribers  map[int]chan models.SessionSnapshot
	nextSub      int
}

// NewSession validates cfg and creates an idle session.
func NewSession(cfg models.SessionConfig, opts Options) (*Session, error) {
	cfg = withDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%w: execution service is required", ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewValidationLogger(logger.NewNopLogger())
	}

	id := uuid.New()
	now := time.Now()
	done := make(chan struct{})
	close(done)

	return &Session{
		id:          id,
		cfg:         cfg,
		runner:      NewRunner(opts.Service, id.String(), cfg, opts.Logger),
		adjuster:    opts.Adjuster,
		logger:      opts.Logger,
		onTerminal:  opts.OnTerminal,
		now:         time.Now,
		status:      models.SessionIdle,
		createdAt:   now,
		updatedAt:   now,
		cancel:      func() {},
		done:        done,
		subscribers: make(map[int]chan models.SessionSnapshot),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Config returns the session configuration.
func (s *Session) Config() models.SessionConfig {
	return s.cfg
}

// Start moves an idle session to running and launches its control loop.
func (s *Session) Start() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.SessionIdle {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, s.status)
	}
	s.transition(models.SessionRunning, "start requested")
	s.launch()
	return nil
}

// Pause halts the control loop. It returns once the pacing delay, poll
// ticker and run timeout of the current cycle have been released. The
// queued run is kept and picked up again by Resume.
func (s *Session) Pause() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.mu.Lock()
	if s.status != models.SessionRunning {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, status)
	}
	s.transition(models.SessionPaused, "pause requested")
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Resume restarts the control loop of a paused session.
func (s *Session) Resume() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.SessionPaused {
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, s.status)
	}
	s.transition(models.SessionRunning, "resume requested")
	s.launch()
	return nil
}

// Stop ends the session. A run still in the queue is recorded as cancelled.
// Stopping a finished session is a no-op.
func (s *Session) Stop() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.mu.Lock()
	if s.status.IsTerminal() {
		s.mu.Unlock()
		return nil
	}
	s.transition(models.SessionStopped, "stop requested")
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelQueue("session stopped")
	s.publish()
	return nil
}

// Reset halts any activity and clears history, statistics and counters,
// returning the session to idle.
func (s *Session) Reset() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.mu.Lock()
	if s.status != models.SessionIdle {
		s.transition(models.SessionIdle, "reset requested")
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.history = nil
	s.stats = models.SessionStats{}
	s.progress = 0
	s.adjustments = 0
	s.runsExecuted = 0
	s.insights = nil
	s.lastErr = ""
	s.updatedAt = s.now()
	metrics.UpdateLearningProgress(s.id.String(), 0)
	s.publish()
	return nil
}

// Wait blocks until the current control loop, if any, has exited.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done
}

// Snapshot returns a read-only copy of the session state.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// History returns the terminal runs, newest first.
func (s *Session) History() []models.TestRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.TestRun, 0, len(s.history))
	for _, run := range s.history {
		out = append(out, *run.Clone())
	}
	return out
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Slow subscribers skip intermediate snapshots; the latest is always kept.
func (s *Session) Subscribe() (<-chan models.SessionSnapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan models.SessionSnapshot, subscriberBuffer)
	s.subscribers[id] = ch
	ch <- s.snapshot()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

// launch starts a control loop. Caller holds s.mu.
func (s *Session) launch() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(ctx, done)
}

func (s *Session) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("validation loop panic: %v", r))
		}
	}()

	for {
		run, ok := s.nextRun()
		if !ok {
			return
		}

		if run.Status == models.RunQueued && !s.pace(ctx) {
			return
		}

		result, err := s.runner.Execute(ctx, run, s.updateQueued)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(err)
			return
		}

		if !s.finish(ctx, result) {
			return
		}
	}
}

// nextRun applies the stop conditions and returns the run to execute: the
// run left in the queue by a pause, or a freshly planned one.
func (s *Session) nextRun() (*models.TestRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.SessionRunning {
		return nil, false
	}
	if len(s.queue) > 0 {
		return s.queue[0].Clone(), true
	}

	if s.runsExecuted >= s.cfg.MaxTotalTests {
		s.transition(models.SessionCompleted, fmt.Sprintf("max tests reached (%d)", s.cfg.MaxTotalTests))
		return nil, false
	}
	if s.cfg.StopOnProfitability && IsProfitable(s.history, s.stats, s.cfg.Criteria) {
		s.transition(models.SessionProfitable, "profitability criteria met")
		return nil, false
	}

	window := NextWindow(s.cfg.DefaultWindowDays, s.history, s.cfg.AutoAdjust, s.now())
	run := models.NewTestRun(fmt.Sprintf("Validation run %d", s.runsExecuted+1), window, s.now())
	s.queue = append(s.queue, run)
	s.updatedAt = s.now()
	s.logger.LogRunQueued(s.id.String(), run.ID.String(), run.Label, window.String(), window.Days())
	s.publish()

	return run.Clone(), true
}

// pace waits out the pacing interval before submission.
func (s *Session) pace(ctx context.Context) bool {
	if s.cfg.PacingInterval <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(s.cfg.PacingInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// updateQueued mirrors runner transitions into the queue.
func (s *Session) updateQueued(run *models.TestRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 || s.queue[0].ID != run.ID {
		return
	}
	s.queue[0] = run
	s.updatedAt = s.now()
	s.publish()
}

// finish records a terminal run and reports whether the loop should go on.
func (s *Session) finish(ctx context.Context, run *models.TestRun) bool {
	snapshot, adjust, running := s.record(run)
	if adjust {
		err := s.adjust(ctx, snapshot)

		s.mu.Lock()
		s.adjustments++
		made := s.adjustments
		s.publish()
		s.mu.Unlock()

		metrics.RecordAdjustment()
		s.logger.LogAdjustment(s.id.String(), made, err)
	}
	return running && ctx.Err() == nil
}

// adjust notifies the adjuster, turning a panic into an error. With no
// adjuster configured the adjustment is still counted.
func (s *Session) adjust(ctx context.Context, snapshot models.SessionSnapshot) (err error) {
	if s.adjuster == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adjuster panic: %v", r)
		}
	}()
	return s.adjuster.Adjust(ctx, snapshot)
}

// record moves run from the queue to the front of history and refreshes the
// derived state in one critical section.
func (s *Session) record(run *models.TestRun) (models.SessionSnapshot, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 || s.queue[0].ID != run.ID {
		// reset won the race
		return models.SessionSnapshot{}, false, false
	}

	if run.HasMetrics() {
		run.Passed = Evaluate(run.Result, s.cfg.Criteria)
	}
	s.queue = s.queue[1:]
	s.pushHistory(run)
	s.runsExecuted++
	s.refresh()
	s.addInsight(Insight(run, s.cfg.Criteria))
	s.observe(run)
	s.updatedAt = s.now()
	s.publish()

	adjust := s.cfg.AutoAdjust && run.HasMetrics() && !run.Passed
	var snapshot models.SessionSnapshot
	if adjust {
		snapshot = s.snapshot()
	}
	return snapshot, adjust, s.status == models.SessionRunning
}

// fail handles a session-fatal error: the in-flight run is recorded as an
// execution failure and the session stops.
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = err.Error()
	s.logger.LogSessionError(s.id.String(), err)

	if len(s.queue) > 0 {
		run := s.queue[0]
		s.queue = s.queue[1:]
		run.Fail(models.FailureExecution, err.Error(), s.now())
		s.pushHistory(run)
		s.runsExecuted++
		s.refresh()
		s.addInsight(Insight(run, s.cfg.Criteria))
		s.observe(run)
	}

	if s.status == models.SessionRunning {
		s.transition(models.SessionStopped, "session error")
	}
	s.updatedAt = s.now()
	s.publish()
}

// cancelQueue records every queued run as cancelled. Caller holds s.mu.
func (s *Session) cancelQueue(reason string) {
	if len(s.queue) == 0 {
		return
	}
	for _, run := range s.queue {
		run.Fail(models.FailureCancelled, reason, s.now())
		s.pushHistory(run)
		s.addInsight(Insight(run, s.cfg.Criteria))
		s.observe(run)
	}
	s.queue = nil
	s.refresh()
	s.updatedAt = s.now()
}

// pushHistory prepends run and evicts the oldest entries past capacity.
func (s *Session) pushHistory(run *models.TestRun) {
	history := make([]*models.TestRun, 0, len(s.history)+1)
	history = append(history, run)
	history = append(history, s.history...)
	if len(history) > s.cfg.HistoryCapacity {
		history = history[:s.cfg.HistoryCapacity]
	}
	s.history = history
}

// refresh recomputes stats and learning progress from history.
func (s *Session) refresh() {
	s.stats = Recompute(s.history, s.cfg.Criteria)
	profitable := IsProfitable(s.history, s.stats, s.cfg.Criteria)
	s.progress = LearningProgress(s.history, profitable, s.cfg.Criteria)

	metrics.UpdateLearningProgress(s.id.String(), s.progress)
	s.logger.LogProgress(s.id.String(), s.stats.TotalRuns, s.stats.PassedRuns,
		s.stats.ConsecutivePasses, s.stats.AvgSharpe, s.progress)
}

func (s *Session) addInsight(insight string) {
	s.insights = append(s.insights, insight)
	if len(s.insights) > insightCapacity {
		s.insights = s.insights[len(s.insights)-insightCapacity:]
	}
}

// observe logs and counts a terminal run.
func (s *Session) observe(run *models.TestRun) {
	duration := 0.0
	if run.SubmittedAt != nil && run.CompletedAt != nil {
		duration = run.CompletedAt.Sub(*run.SubmittedAt).Seconds()
	}

	if run.HasMetrics() {
		outcome := "failed_criteria"
		if run.Passed {
			outcome = "passed"
		}
		metrics.RecordRun(outcome, duration)
		s.logger.LogRunCompleted(s.id.String(), run.ID.String(), run.Passed,
			run.Result.Sharpe(), run.Result.Return(), duration)
		return
	}

	metrics.RecordRun(string(run.FailureReason), duration)
	s.logger.LogRunFailed(s.id.String(), run.ID.String(), string(run.FailureReason), run.Message)
}

// transition changes status. Caller holds s.mu.
func (s *Session) transition(to models.SessionStatus, reason string) {
	from := s.status
	if from == to {
		return
	}
	s.status = to
	s.updatedAt = s.now()

	metrics.RecordSessionTransition(string(from), string(to))
	s.logger.LogSessionTransition(s.id.String(), string(from), string(to), reason)

	if to.IsTerminal() && s.onTerminal != nil {
		s.onTerminal(s.snapshot())
	}
	s.publish()
}

// snapshot deep-copies the session state. Caller holds s.mu.
func (s *Session) snapshot() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		ID:               s.id,
		Config:           s.cfg,
		Status:           s.status,
		Queue:            cloneRuns(s.queue),
		History:          cloneRuns(s.history),
		Stats:            s.stats,
		LearningProgress: s.progress,
		AdjustmentsMade:  s.adjustments,
		RunsExecuted:     s.runsExecuted,
		Insights:         append([]string(nil), s.insights...),
		LastError:        s.lastErr,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
	}
	return snap
}

// publish fans the current snapshot out to subscribers. Caller holds s.mu.
func (s *Session) publish() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshot()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so the latest one fits
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func cloneRuns(runs []*models.TestRun) []*models.TestRun {
	out := make([]*models.TestRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.Clone())
	}
	return out
}
