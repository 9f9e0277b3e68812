package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/models"
)

// SessionStore holds the sessions known to a Manager.
type SessionStore interface {
	Put(session *Session)
	Get(id uuid.UUID) (*Session, bool)
	// Retire marks a finished session for eventual removal.
	Retire(id uuid.UUID)
	// Revive cancels a pending removal.
	Revive(id uuid.UUID)
	List() []*Session
}

type actorKey struct{}

// WithActor tags ctx with the caller identity recorded in audit logs.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

// Manager is the session control surface used by the CLI, the HTTP API and
// the revalidation scheduler.
type Manager struct {
	store    SessionStore
	service  ExecutionService
	adjuster Adjuster
	logger   *logger.ValidationLogger
	audit    *logger.AuditLogger
}

// NewManager creates a manager. adjuster may be nil.
func NewManager(store SessionStore, service ExecutionService, adjuster Adjuster, baseLogger *logrus.Logger) *Manager {
	return &Manager{
		store:    store,
		service:  service,
		adjuster: adjuster,
		logger:   logger.NewValidationLogger(baseLogger),
		audit:    logger.NewAuditLogger(baseLogger),
	}
}

// Start creates a session for cfg and starts it.
func (m *Manager) Start(ctx context.Context, cfg models.SessionConfig) (uuid.UUID, error) {
	session, err := NewSession(cfg, Options{
		Service:    m.service,
		Adjuster:   m.adjuster,
		Logger:     m.logger,
		OnTerminal: func(snap models.SessionSnapshot) { m.store.Retire(snap.ID) },
	})
	if err != nil {
		m.audit.LogControlAction("", "start", actorFrom(ctx), err)
		return uuid.Nil, err
	}

	m.store.Put(session)
	if err := session.Start(); err != nil {
		m.audit.LogControlAction(session.ID().String(), "start", actorFrom(ctx), err)
		return uuid.Nil, err
	}

	cfg = session.Config()
	m.audit.LogSessionStarted(session.ID().String(), cfg.StrategyID, actorFrom(ctx),
		cfg.MaxTotalTests, cfg.DefaultWindowDays, cfg.AutoAdjust)
	return session.ID(), nil
}

// Pause pauses a running session.
func (m *Manager) Pause(ctx context.Context, id uuid.UUID) error {
	return m.control(ctx, id, "pause", (*Session).Pause)
}

// Resume resumes a paused session.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID) error {
	return m.control(ctx, id, "resume", (*Session).Resume)
}

// Stop stops a session.
func (m *Manager) Stop(ctx context.Context, id uuid.UUID) error {
	return m.control(ctx, id, "stop", (*Session).Stop)
}

// Reset clears a session and returns it to idle.
func (m *Manager) Reset(ctx context.Context, id uuid.UUID) error {
	return m.control(ctx, id, "reset", func(s *Session) error {
		if err := s.Reset(); err != nil {
			return err
		}
		m.store.Revive(s.ID())
		return nil
	})
}

// Restart resets a session and starts it again with its stored config.
func (m *Manager) Restart(ctx context.Context, id uuid.UUID) error {
	return m.control(ctx, id, "restart", func(s *Session) error {
		if err := s.Reset(); err != nil {
			return err
		}
		m.store.Revive(s.ID())
		return s.Start()
	})
}

func (m *Manager) control(ctx context.Context, id uuid.UUID, action string, fn func(*Session) error) error {
	session, err := m.get(id)
	if err == nil {
		err = fn(session)
	}
	m.audit.LogControlAction(id.String(), action, actorFrom(ctx), err)
	return err
}

// Status returns a snapshot of the session.
func (m *Manager) Status(id uuid.UUID) (models.SessionSnapshot, error) {
	session, err := m.get(id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// History returns the terminal runs of the session, newest first.
func (m *Manager) History(id uuid.UUID) ([]models.TestRun, error) {
	session, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return session.History(), nil
}

// Subscribe streams snapshots of the session until the returned func is called.
func (m *Manager) Subscribe(id uuid.UUID) (<-chan models.SessionSnapshot, func(), error) {
	session, err := m.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := session.Subscribe()
	return ch, unsubscribe, nil
}

// List returns snapshots of all known sessions, oldest first.
func (m *Manager) List() []models.SessionSnapshot {
	sessions := m.store.List()
	out := make([]models.SessionSnapshot, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// HasActive reports whether a non-terminal session exists for the strategy.
func (m *Manager) HasActive(strategyID string) bool {
	for _, session := range m.store.List() {
		snap := session.Snapshot()
		if snap.Config.StrategyID == strategyID && !snap.Status.IsTerminal() && snap.Status != models.SessionIdle {
			return true
		}
	}
	return false
}

// Shutdown stops every session that has not finished yet. It gives up when
// ctx ends before all sessions have stopped; those keep stopping in the
// background.
func (m *Manager) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	for _, session := range m.store.List() {
		session := session
		if session.Snapshot().Status.IsTerminal() {
			continue
		}
		g.Go(func() error {
			if err := session.Stop(); err != nil {
				return fmt.Errorf("stop session %s: %w", session.ID(), err)
			}
			m.audit.LogControlAction(session.ID().String(), "stop", actorFrom(ctx), nil)
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown interrupted: %w", ctx.Err())
	}
}

func (m *Manager) get(id uuid.UUID) (*Session, error) {
	session, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}
