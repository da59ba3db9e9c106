package service

import (
	"time"

	"github.com/okian/turnout/internal/adapters/lock"
	"github.com/okian/turnout/internal/adapters/repository"
	"github.com/okian/turnout/internal/adapters/session"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/visibility"
	"github.com/okian/turnout/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the tabular store. The service closes it on Stop.
func WithStore(store repository.TabularStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSessionStore sets where wizard sessions live.
func WithSessionStore(store session.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithLocker sets the per-event lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithFilter sets the visibility rules.
func WithFilter(f visibility.Filter) Option {
	return func(s *Service) {
		s.filter = visibility.New(f.Window, f.Location)
	}
}

// WithShards sets the number of single-writer goroutines.
func WithShards(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shards = n
		}
	}
}

// WithQueueSize bounds pending commits per shard.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the committed-batch set.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxAttempts caps re-read/rewrite cycles on version conflicts.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBootstrapAdmin provisions name/phone when the roster is empty at Start.
func WithBootstrapAdmin(name, phone string) Option {
	return func(s *Service) {
		s.bootstrapAdmin = model.Admin{Name: model.NormalizeName(name), Phone: model.NormalizePhone(phone)}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how session and batch ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
