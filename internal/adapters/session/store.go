// Package session keeps wizard sessions between requests.
package session

import (
	"context"
	"time"

	"github.com/okian/turnout/internal/domain/wizard"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

// Store persists sessions. Get returns domain.ErrSessionNotFound for unknown
// or expired ids. Put refreshes the TTL.
type Store interface {
	Get(ctx context.Context, id string) (*wizard.Session, error)
	Put(ctx context.Context, s *wizard.Session) error
	Delete(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
	Close() error
}

func clone(s *wizard.Session) *wizard.Session {
	out := *s
	if s.Draft != nil {
		d := *s.Draft
		out.Draft = &d
	}
	if s.LastReceipt != nil {
		r := *s.LastReceipt
		out.LastReceipt = &r
	}
	out.Voted = make(map[string]bool, len(s.Voted))
	for k, v := range s.Voted {
		out.Voted[k] = v
	}
	return &out
}
