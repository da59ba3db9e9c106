package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/reconcile"
	"github.com/okian/turnout/pkg/logger"
	"github.com/okian/turnout/pkg/metrics"
)

// Commit hands sub to the writer that owns its event and waits for it to be
// persisted.
func (s *Service) Commit(ctx context.Context, sub model.Submission) error {
	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()
	if pool == nil {
		return fmt.Errorf("%w: service not started", domain.ErrStoreUnavailable)
	}
	return pool.Submit(ctx, sub)
}

// apply runs on the writer goroutine owning sub.EventID.
func (s *Service) apply(ctx context.Context, sub model.Submission) error {
	start := time.Now()

	if s.deduper.SeenAndRecord(ctx, sub.BatchID) {
		metrics.RecordSubmission(metrics.OutcomeDuplicate)
		s.logger.Debug(ctx, "batch already committed", logger.String("batch_id", sub.BatchID))
		return nil
	}

	err := s.withLock(ctx, eventLockKey(sub.EventID), func() error {
		return s.retry(ctx, func() error { return s.reconcileOnce(ctx, sub) })
	})
	if err != nil {
		s.deduper.Unrecord(ctx, sub.BatchID)
		outcome := metrics.OutcomeFailed
		if !domain.Retryable(err) && domain.Code(err) != "" {
			outcome = metrics.OutcomeRejected
		}
		metrics.RecordSubmission(outcome)
		metrics.RecordErrorByComponent("commit", codeOf(err))
		s.logger.Warn(ctx, "commit failed",
			logger.String("event_id", sub.EventID),
			logger.String("batch_id", sub.BatchID),
			logger.Error(err),
		)
		return err
	}

	metrics.RecordSubmission(metrics.OutcomeCommitted)
	metrics.RecordCommitLatency(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Info(ctx, "submission committed",
		logger.String("event_id", sub.EventID),
		logger.String("batch_id", sub.BatchID),
		logger.Bool("companion", sub.Companion),
	)
	return nil
}

// reconcileOnce reads fresh snapshots, merges sub and writes back against the
// version it read.
func (s *Service) reconcileOnce(ctx context.Context, sub model.Submission) error {
	events, _, err := s.catalog.Load(ctx)
	if err != nil {
		return err
	}
	catalog := model.NewCatalog(events)
	ev, ok := catalog.Lookup(sub.EventID)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrEventNotFound, sub.EventID)
	}
	now := s.now()
	if !s.filter.IsVisible(ev, now) {
		return fmt.Errorf("%w: %q", domain.ErrEventNotFound, sub.EventID)
	}
	if s.filter.IsLocked(ev, now) {
		return fmt.Errorf("%w: %q", domain.ErrEventLocked, sub.EventID)
	}

	table, version, err := s.attendance.Load(ctx)
	if err != nil {
		return err
	}
	next, err := reconcile.Reconcile(table, catalog, sub)
	if err != nil {
		return err
	}
	_, err = s.attendance.Save(ctx, next, version)
	return err
}
