package state

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// State identifies a conversation step. Its values are owned by the flow using the store.
type State string

var (
	// ErrNotFound is returned when no live session exists for a user.
	ErrNotFound = errors.New("state: session not found")
	// ErrLockTimeout is returned when a user lock cannot be acquired in time.
	ErrLockTimeout = errors.New("state: lock timeout")
)

// Session stores conversation state and string-valued data for a user.
type Session struct {
	UserID    int64             `json:"user_id"`
	State     State             `json:"state"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewSession returns an empty session for userID in the given state.
func NewSession(userID int64, st State) *Session {
	return &Session{UserID: userID, State: st, Data: make(map[string]string)}
}

// Value returns the data value stored under key.
func (s *Session) Value(key string) (string, bool) {
	if s == nil || s.Data == nil {
		return "", false
	}
	v, ok := s.Data[key]
	return v, ok
}

// Int64 returns the data value under key parsed as int64.
func (s *Session) Int64(key string) (int64, bool) {
	v, ok := s.Value(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set stores value under key. An empty value removes the key.
func (s *Session) Set(key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	if value == "" {
		delete(s.Data, key)
		return
	}
	s.Data[key] = value
}

// Clone returns a deep copy so stores never share maps with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return &out
}

// Store persists sessions keyed by user id.
type Store interface {
	// Get returns the live session for userID or ErrNotFound.
	Get(ctx context.Context, userID int64) (*Session, error)
	// Save creates or replaces the session and stamps UpdatedAt.
	Save(ctx context.Context, s *Session) error
	// Clear removes the session for userID. Clearing a missing session is not an error.
	Clear(ctx context.Context, userID int64) error
}

// Locker provides mutual exclusion per user id.
type Locker interface {
	// Lock blocks until the user's lock is held or ctx is done.
	// The returned function releases the lock and is safe to call more than once.
	Lock(ctx context.Context, userID int64) (func(), error)
}

func expired(updatedAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(updatedAt) > ttl
}
