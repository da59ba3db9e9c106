// Package lock serialises work on one key, inside a process or across
// processes through Redis.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Release gives a held lock back.
type Release func(ctx context.Context) error

// Locker hands out exclusive locks by key.
type Locker interface {
	// Acquire blocks until key is held or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds
// or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	token chan struct{}
	refs  int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Acquire implements Locker.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.token <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, s)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		released := false
		once.Do(func() {
			<-s.token
			m.unref(key, s)
			released = true
		})
		if !released {
			return fmt.Errorf("%w: %s", ErrNotHeld, key)
		}
		return nil
	}, nil
}

func (m *KeyedMutex) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// Len reports how many keys are held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
