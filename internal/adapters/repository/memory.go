package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/turnout/internal/domain"
)

// MemoryStore keeps sheets in process memory. Version checks and writes happen
// under one mutex.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[Sheet][]Row
}

// NewMemoryStore returns an empty store, optionally seeded.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{sheets: make(map[Sheet][]Row)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read implements TabularStore.
func (s *MemoryStore) Read(ctx context.Context, sheet Sheet) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !knownSheet(sheet) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownSheet, sheet)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.sheets[sheet]
	return Snapshot{Rows: cloneRows(rows), Version: VersionOf(rows)}, nil
}

// Write implements TabularStore.
func (s *MemoryStore) Write(ctx context.Context, sheet Sheet, rows []Row, expected Version) (Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !knownSheet(sheet) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSheet, sheet)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if expected != AnyVersion {
		if current := VersionOf(s.sheets[sheet]); current != expected {
			return 0, fmt.Errorf("%w: %s at %d, expected %d", domain.ErrConflict, sheet, current, expected)
		}
	}
	s.sheets[sheet] = cloneRows(rows)
	return VersionOf(rows), nil
}

// Close implements TabularStore.
func (s *MemoryStore) Close() error { return nil }
