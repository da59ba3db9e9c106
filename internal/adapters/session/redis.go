package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/wizard"
)

const defaultKeyPrefix = "turnout:session:"

// RedisStore keeps sessions as JSON values with a TTL, so several API
// processes can serve the same user.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: DefaultTTL, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*wizard.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrStoreUnavailable, err)
	}
	var out wizard.Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if out.Voted == nil {
		out.Voted = map[string]bool{}
	}
	return &out, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, sess *wizard.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrMissingID
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: put session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Len implements Store by scanning the key prefix. The scan walks every live
// session, so it is polled by the stats updater and never called per request.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: scan sessions: %v", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

// Close implements Store. The client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
