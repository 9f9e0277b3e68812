// Package scheduler starts fresh validation sessions on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/strategy-validator/internal/models"
	"github.com/yourusername/strategy-validator/internal/validation"
)

// SessionStarter is the part of the session manager the scheduler needs.
type SessionStarter interface {
	Start(ctx context.Context, cfg models.SessionConfig) (uuid.UUID, error)
	HasActive(strategyID string) bool
}

// Scheduler manages scheduled revalidation jobs
type Scheduler struct {
	cron      *cron.Cron
	starter   SessionStarter
	logger    *logrus.Entry
	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(starter SessionStarter, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		starter: starter,
		logger:  logger.WithField("component", "scheduler"),
		jobIDs:  make([]cron.EntryID, 0),
	}
}

// ScheduleRevalidation starts a new session for cfg on every tick of the
// cron expression. Ticks are skipped while a session for the same strategy
// is still active.
func (s *Scheduler) ScheduleRevalidation(cronExpression string, cfg models.SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() { s.revalidate(cfg) })
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"schedule":    cronExpression,
		"strategy_id": cfg.StrategyID,
	}).Info("Scheduled revalidation job")

	return nil
}

// revalidate is the job body; it reports whether a session was started.
func (s *Scheduler) revalidate(cfg models.SessionConfig) bool {
	entry := s.logger.WithField("strategy_id", cfg.StrategyID)

	if s.starter.HasActive(cfg.StrategyID) {
		entry.Info("Skipping revalidation, a session is still active")
		return false
	}

	ctx := validation.WithActor(context.Background(), "scheduler")
	id, err := s.starter.Start(ctx, cfg)
	if err != nil {
		entry.WithError(err).Error("Failed to start revalidation session")
		return false
	}

	entry.WithField("session_id", id.String()).Info("Revalidation session started")
	return true
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the time of the next scheduled job run, or the zero time
// when the scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	var next time.Time
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (next.IsZero() || entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}
