package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/wizard"
	"github.com/okian/turnout/pkg/logger"
	"github.com/okian/turnout/pkg/metrics"
)

// NewSession opens a wizard waiting for an event selection.
func (s *Service) NewSession(ctx context.Context) (*wizard.Session, error) {
	sess := wizard.New(s.newID(), s.now())
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	metrics.RecordWizardTransition(string(sess.State))
	return sess, nil
}

// Session returns the stored session.
func (s *Service) Session(ctx context.Context, id string) (*wizard.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Options lists the selectable events. sessionID may be empty or unknown, in
// which case no event is labelled as a re-vote.
func (s *Service) Options(ctx context.Context, sessionID string) ([]wizard.Option, error) {
	statuses, err := s.ActiveEvents(ctx)
	if err != nil {
		return nil, err
	}
	sess := wizard.New("", s.now())
	if sessionID != "" {
		stored, err := s.sessions.Get(ctx, sessionID)
		switch {
		case err == nil:
			sess = stored
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, err
		}
	}
	return sess.Options(statuses), nil
}

// SelectEvent starts a draft for eventID with a fresh batch id.
func (s *Service) SelectEvent(ctx context.Context, sessionID, eventID string) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		st, err := s.EventStatus(ctx, eventID, now)
		if err != nil {
			return err
		}
		return sess.SelectEvent(st, s.newID(), now)
	})
}

// SetIdentity records the voter and the companion flag.
func (s *Service) SetIdentity(ctx context.Context, sessionID, name, phone string, companion bool) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		return sess.SetIdentity(name, phone, companion, now)
	})
}

// ConfirmAttendance marks the draft as attending.
func (s *Service) ConfirmAttendance(ctx context.Context, sessionID string) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		return sess.ConfirmAttendance(now)
	})
}

// ChooseAfterparty records the afterparty answer.
func (s *Service) ChooseAfterparty(ctx context.Context, sessionID string, choice model.Afterparty) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		return sess.ChooseAfterparty(choice, now)
	})
}

// Submit commits the draft. On failure the returned session is back at event
// selection alongside the error.
func (s *Service) Submit(ctx context.Context, sessionID string) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		_, err := sess.Submit(ctx, now, s, s)
		return err
	})
}

// Restart begins a re-vote after a successful submission.
func (s *Service) Restart(ctx context.Context, sessionID string) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		return sess.Restart(now)
	})
}

// Cancel abandons the draft.
func (s *Service) Cancel(ctx context.Context, sessionID string) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		sess.Cancel(now)
		return nil
	})
}

// step loads a session, applies one transition and stores the result even
// when the transition fails, since Submit resets on failure.
func (s *Service) step(ctx context.Context, sessionID string, fn func(*wizard.Session, time.Time) error) (*wizard.Session, error) {
	var out *wizard.Session
	err := s.withLock(ctx, sessionLockKey(sessionID), func() error {
		sess, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		before := sess.State
		stepErr := fn(sess, s.now())
		if err := s.sessions.Put(ctx, sess); err != nil {
			return errors.Join(stepErr, err)
		}
		if sess.State != before {
			metrics.RecordWizardTransition(string(sess.State))
		}
		out = sess
		return stepErr
	})
	if err != nil {
		metrics.RecordErrorByComponent("wizard", codeOf(err))
		s.logger.Debug(ctx, "wizard step failed", logger.String("session", sessionID), logger.Error(err))
	}
	return out, err
}

func codeOf(err error) string {
	if c := domain.Code(err); c != "" {
		return c
	}
	return "internal"
}
