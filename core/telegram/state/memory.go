package state

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time

	lastSweep time.Time
}

// NewMemoryStore constructs an in-memory Store. Sessions idle for longer than
// ttl are dropped on access, and Save sweeps every expired session at most
// once per ttl. ttl <= 0 keeps them for the process lifetime.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a copy of the user's session if it exists and has not expired.
func (m *memoryStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if expired(session.UpdatedAt, m.ttl, m.now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[userID]; ok && cur == session {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

// Save stores a copy of the session.
func (m *memoryStore) Save(_ context.Context, s *Session) error {
	stored := s.Clone()
	stored.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = stored
	s.UpdatedAt = stored.UpdatedAt
	m.sweepLocked(stored.UpdatedAt)
	return nil
}

// sweepLocked drops expired sessions of users who never came back. Callers
// hold mu.
func (m *memoryStore) sweepLocked(now time.Time) int {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl {
		return 0
	}
	m.lastSweep = now
	removed := 0
	for id, sess := range m.sessions {
		if expired(sess.UpdatedAt, m.ttl, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Clear removes the entire session for a user.
func (m *memoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
