package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/pkg/metrics"
)

// instrumentedStore records latency and failures of an inner store.
type instrumentedStore struct {
	inner TabularStore
}

// Instrument wraps store with Prometheus timing. Version conflicts are not
// counted as store errors.
func Instrument(store TabularStore) TabularStore {
	return &instrumentedStore{inner: store}
}

func (s *instrumentedStore) Read(ctx context.Context, sheet Sheet) (Snapshot, error) {
	start := time.Now()
	snap, err := s.inner.Read(ctx, sheet)
	s.observe(sheet, "read", start, err)
	return snap, err
}

func (s *instrumentedStore) Write(ctx context.Context, sheet Sheet, rows []Row, expected Version) (Version, error) {
	start := time.Now()
	v, err := s.inner.Write(ctx, sheet, rows, expected)
	s.observe(sheet, "write", start, err)
	return v, err
}

func (s *instrumentedStore) Close() error { return s.inner.Close() }

func (s *instrumentedStore) observe(sheet Sheet, op string, start time.Time, err error) {
	metrics.RecordStoreOperation(string(sheet), op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		metrics.RecordStoreError(string(sheet), op)
	}
}
