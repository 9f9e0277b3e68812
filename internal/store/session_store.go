// Package store keeps validation sessions in memory.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/validation"
)

// SessionStore holds sessions keyed by id. Active sessions never expire;
// retired ones are dropped after the retention period.
type SessionStore struct {
	cache     *cache.Cache
	retention time.Duration
	mu        sync.Mutex
}

// NewSessionStore creates a store that keeps finished sessions for retention.
func NewSessionStore(retention time.Duration) *SessionStore {
	cleanup := retention / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}

	c := cache.New(cache.NoExpiration, cleanup)
	c.OnEvicted(func(key string, _ interface{}) {
		metrics.ForgetSession(key)
	})

	return &SessionStore{
		cache:     c,
		retention: retention,
	}
}

// Put stores a session without expiry.
func (s *SessionStore) Put(session *validation.Session) {
	s.cache.Set(session.ID().String(), session, cache.NoExpiration)
}

// Get returns the session for id.
func (s *SessionStore) Get(id uuid.UUID) (*validation.Session, bool) {
	v, found := s.cache.Get(id.String())
	if !found {
		return nil, false
	}
	session, ok := v.(*validation.Session)
	return session, ok
}

// Retire starts the retention countdown for a finished session.
func (s *SessionStore) Retire(id uuid.UUID) {
	s.reset(id, s.retention)
}

// Revive clears a pending expiry, e.g. after the session was reset.
func (s *SessionStore) Revive(id uuid.UUID) {
	s.reset(id, cache.NoExpiration)
}

func (s *SessionStore) reset(id uuid.UUID, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	if v, found := s.cache.Get(key); found {
		s.cache.Set(key, v, ttl)
	}
}

// Delete removes a session immediately.
func (s *SessionStore) Delete(id uuid.UUID) {
	s.cache.Delete(id.String())
}

// List returns all unexpired sessions in no particular order.
func (s *SessionStore) List() []*validation.Session {
	items := s.cache.Items()
	out := make([]*validation.Session, 0, len(items))
	for _, item := range items {
		if session, ok := item.Object.(*validation.Session); ok {
			out = append(out, session)
		}
	}
	return out
}

// Len returns the number of stored sessions, including expired ones not yet
// cleaned up.
func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}
