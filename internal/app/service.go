// Package service wires the voting core to its stores and exposes the
// operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/turnout/internal/adapters/lock"
	workerpool "github.com/okian/turnout/internal/adapters/mq/worker"
	"github.com/okian/turnout/internal/adapters/repository"
	"github.com/okian/turnout/internal/adapters/session"
	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/attendance"
	"github.com/okian/turnout/internal/domain/dedupe"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/visibility"
	"github.com/okian/turnout/pkg/logger"
	"github.com/okian/turnout/pkg/metrics"
)

const (
	defaultQueueSize   = 256
	defaultMaxAttempts = 5
	catalogLockKey     = "sheet:events"
	adminLockKey       = "sheet:admins"
)

// Service implements the API dependencies for the attendance system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.TabularStore
	catalog    *repository.CatalogRepository
	attendance *repository.AttendanceRepository
	admins     *repository.AdminRepository
	sessions   session.Store
	locker     lock.Locker
	deduper    dedupe.Deduper
	pool       *workerpool.Pool
	filter     visibility.Filter

	// Configuration
	shards         int
	queueSize      int
	dedupeSize     int
	maxAttempts    int
	bootstrapAdmin model.Admin

	now   func() time.Time
	newID func() string

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service. Without options it runs fully in memory.
func New(opts ...Option) *Service {
	s := &Service{
		shards:      runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  dedupe.DefaultMaxSize,
		maxAttempts: defaultMaxAttempts,
		filter:      visibility.New(visibility.DefaultWindow, time.Local),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore()
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	s.catalog = repository.NewCatalogRepository(s.store)
	s.attendance = repository.NewAttendanceRepository(s.store)
	s.admins = repository.NewAdminRepository(s.store)
	return s
}

// Start launches the writers and provisions the first administrator when the
// roster is empty.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting turnout service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.pool = workerpool.NewPool(
		workerpool.HandlerFunc(s.apply),
		workerpool.WithShards(s.shards),
		workerpool.WithQueueSize(s.queueSize),
	)
	s.pool.Start(ctx)

	if err := s.provisionAdmin(ctx); err != nil {
		_ = s.pool.Shutdown(ctx)
		return err
	}

	s.started = true
	s.logger.Info(ctx, "turnout service started",
		logger.Int("shards", s.shards),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("maxAttempts", s.maxAttempts),
	)
	return nil
}

// Stop drains the writers and closes the stores the service owns.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping turnout service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "turnout service stopped")
	return errors.Join(errs...)
}

func (s *Service) provisionAdmin(ctx context.Context) error {
	if s.bootstrapAdmin.Name == "" || s.bootstrapAdmin.Phone == "" {
		return nil
	}
	return s.withLock(ctx, adminLockKey, func() error {
		return s.retry(ctx, func() error {
			admins, version, err := s.admins.Load(ctx)
			if err != nil {
				return err
			}
			if len(admins) > 0 {
				return nil
			}
			if _, err := s.admins.Save(ctx, []model.Admin{s.bootstrapAdmin}, version); err != nil {
				return err
			}
			s.logger.Info(ctx, "provisioned first administrator", logger.String("name", s.bootstrapAdmin.Name))
			return nil
		})
	})
}

// Events returns every catalog event evaluated at the current time.
func (s *Service) Events(ctx context.Context) ([]visibility.Status, error) {
	events, _, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.filter.Evaluate(events, s.now()), nil
}

// ActiveEvents returns the listed events.
func (s *Service) ActiveEvents(ctx context.Context) ([]visibility.Status, error) {
	events, _, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.filter.Active(events, s.now()), nil
}

// EventStatus resolves one event. Unknown ids yield domain.ErrEventNotFound.
func (s *Service) EventStatus(ctx context.Context, eventID string, now time.Time) (visibility.Status, error) {
	events, _, err := s.catalog.Load(ctx)
	if err != nil {
		return visibility.Status{}, err
	}
	ev, ok := model.NewCatalog(events).Lookup(eventID)
	if !ok {
		return visibility.Status{}, fmt.Errorf("%w: %q", domain.ErrEventNotFound, eventID)
	}
	return visibility.Status{
		Event:   ev,
		Visible: s.filter.IsVisible(ev, now),
		Locked:  s.filter.IsLocked(ev, now),
	}, nil
}

// Summary aggregates attendance for a listed event. Locked events are still
// summarised; hidden ones are reported as not found.
func (s *Service) Summary(ctx context.Context, eventID string) (attendance.Summary, error) {
	st, err := s.EventStatus(ctx, eventID, s.now())
	if err != nil {
		return attendance.Summary{}, err
	}
	if !st.Visible {
		return attendance.Summary{}, fmt.Errorf("%w: %q", domain.ErrEventNotFound, eventID)
	}
	table, _, err := s.attendance.Load(ctx)
	if err != nil {
		return attendance.Summary{}, err
	}
	return attendance.Summarize(table, eventID), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"shards":      s.shards,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"maxAttempts": s.maxAttempts,
	}
	if s.started {
		pending := s.pool.Pending(ctx)
		stats["pending"] = pending
		stats["committedBatches"] = s.deduper.Size()
		metrics.UpdateQueueSize(pending)
	}
	if n, err := s.sessions.Len(ctx); err == nil {
		stats["sessions"] = n
		metrics.UpdateActiveSessions(n)
	}
	return stats
}

// withLock runs fn while holding key.
func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: lock %s: %w", domain.ErrStoreUnavailable, key, ctxErr)
		}
		return fmt.Errorf("%w: lock %s: %w", domain.ErrStoreUnavailable, key, err)
	}
	metrics.RecordLockWait(float64(time.Since(start).Microseconds()) / 1000)
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn(ctx, "lock release failed", logger.String("key", key), logger.Error(err))
		}
	}()
	return fn()
}

// retry re-runs fn while it reports a version conflict.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		metrics.RecordReconcileConflict()
		s.logger.Debug(ctx, "write conflict, re-reading", logger.Int("attempt", attempt))
	}
	return fmt.Errorf("gave up after %d attempts: %w", s.maxAttempts, err)
}

func eventLockKey(eventID string) string {
	return "event:" + eventID
}

func sessionLockKey(id string) string {
	return "session:" + id
}
