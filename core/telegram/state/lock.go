package state

import (
	"context"
	"fmt"
	"sync"
)

type userLock struct {
	ch   chan struct{}
	refs int
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

// NewMemoryLocker returns a process-local Locker.
func NewMemoryLocker() Locker {
	return &memoryLocker{locks: make(map[int64]*userLock)}
}

func (m *memoryLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{ch: make(chan struct{}, 1)}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				m.release(userID, l)
			})
		}, nil
	case <-ctx.Done():
		m.release(userID, l)
		return nil, fmt.Errorf("%w: user %d: %v", ErrLockTimeout, userID, ctx.Err())
	}
}

func (m *memoryLocker) release(userID int64, l *userLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, userID)
	}
}
