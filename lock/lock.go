// Package lock serializes chat turns per conversation.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned by TryLock when another turn holds the key.
var ErrLocked = errors.New("lock is held")

type Locker interface {
	// TryLock acquires key without waiting. The returned release func is
	// safe to call more than once.
	TryLock(ctx context.Context, key string) (release func(), err error)
}

// Memory is an in-process Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) TryLock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; ok {
		return nil, ErrLocked
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
