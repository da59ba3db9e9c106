package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/wizard"
	"github.com/okian/turnout/pkg/metrics"
)

const defaultJanitorInterval = time.Minute

type entry struct {
	session   *wizard.Session
	expiresAt time.Time
}

// MemoryStore holds sessions in process. Expired entries are invisible to Get
// and removed by a background janitor.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a store and starts its janitor.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]entry),
		ttl:      DefaultTTL,
		interval: defaultJanitorInterval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.janitor()
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*wizard.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return clone(e.session), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, sess *wizard.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	s.entries[sess.ID] = entry{session: clone(sess), expiresAt: s.now().Add(s.ttl)}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateActiveSessions(n)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	n := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateActiveSessions(n)
	return nil
}

// Len implements Store. Expired entries not yet collected are excluded.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, e := range s.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateActiveSessions(n)
	return removed
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitor() {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
