package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/wizard"
	"github.com/okian/turnout/pkg/logger"
)

// Authenticate reports whether name and phone match a roster entry.
func (s *Service) Authenticate(ctx context.Context, name, phone string) (bool, error) {
	admins, _, err := s.admins.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range admins {
		if a.Matches(name, phone) {
			return true, nil
		}
	}
	return false, nil
}

// AdminLogin elevates a session. An empty sessionID opens a new one.
func (s *Service) AdminLogin(ctx context.Context, sessionID, name, phone string) (*wizard.Session, error) {
	ok, err := s.Authenticate(ctx, name, phone)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn(ctx, "admin login rejected", logger.String("name", model.NormalizeName(name)))
		return nil, domain.ErrUnauthorized
	}

	if sessionID == "" {
		sess, err := s.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = sess.ID
	}
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		sess.Admin = model.NormalizeName(name)
		sess.AdminPhone = model.NormalizePhone(phone)
		sess.UpdatedAt = now
		return nil
	})
}

// AdminLogout drops administrator rights from a session. The wizard state is
// left untouched.
func (s *Service) AdminLogout(ctx context.Context, sessionID string) (*wizard.Session, error) {
	return s.step(ctx, sessionID, func(sess *wizard.Session, now time.Time) error {
		if sess.Admin != "" {
			s.logger.Info(ctx, "admin logged out", logger.String("name", sess.Admin))
		}
		sess.Admin = ""
		sess.AdminPhone = ""
		sess.UpdatedAt = now
		return nil
	})
}

// requireAdmin resolves the administrator behind sessionID. The session must
// still match a roster entry by name and phone, so removed admins lose access
// immediately.
func (s *Service) requireAdmin(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", domain.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if sess.Admin == "" {
		return "", domain.ErrUnauthorized
	}
	admins, _, err := s.admins.Load(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range admins {
		if a.Matches(sess.Admin, sess.AdminPhone) {
			return sess.Admin, nil
		}
	}
	return "", domain.ErrUnauthorized
}

// CreateEvent appends an event to the catalog.
func (s *Service) CreateEvent(ctx context.Context, sessionID string, ev model.Event) (model.Event, error) {
	admin, err := s.requireAdmin(ctx, sessionID)
	if err != nil {
		return model.Event{}, err
	}
	ev = ev.Normalize()
	if err := s.validateEvent(ev); err != nil {
		return model.Event{}, err
	}

	err = s.withLock(ctx, catalogLockKey, func() error {
		return s.retry(ctx, func() error {
			events, version, err := s.catalog.Load(ctx)
			if err != nil {
				return err
			}
			if _, dup := model.NewCatalog(events).Lookup(ev.ID); dup {
				return fmt.Errorf("%w: %q", domain.ErrDuplicateEvent, ev.ID)
			}
			_, err = s.catalog.Save(ctx, append(events, ev), version)
			return err
		})
	})
	if err != nil {
		return model.Event{}, err
	}
	s.logger.Info(ctx, "event created", logger.String("event_id", ev.ID), logger.String("admin", admin))
	return ev, nil
}

func (s *Service) validateEvent(ev model.Event) error {
	switch {
	case ev.Opponent == "":
		return fmt.Errorf("%w: opponent is required", domain.ErrValidation)
	case ev.Date == "" || ev.StartTime == "":
		return fmt.Errorf("%w: date and start time are required", domain.ErrValidation)
	}
	if _, err := ev.Start(s.filter.Location); err != nil {
		return fmt.Errorf("%w: start %q %q: %v", domain.ErrValidation, ev.Date, ev.StartTime, err)
	}
	if _, err := ev.Deadline(s.filter.Location); err != nil {
		return fmt.Errorf("%w: vote deadline %q: %v", domain.ErrValidation, ev.VoteDeadline, err)
	}
	return nil
}

// DeleteEvent removes an event and every attendance row recorded for it.
func (s *Service) DeleteEvent(ctx context.Context, sessionID, eventID string) error {
	admin, err := s.requireAdmin(ctx, sessionID)
	if err != nil {
		return err
	}

	err = s.withLock(ctx, catalogLockKey, func() error {
		return s.retry(ctx, func() error {
			events, version, err := s.catalog.Load(ctx)
			if err != nil {
				return err
			}
			kept := make([]model.Event, 0, len(events))
			found := false
			for _, ev := range events {
				if ev.ID == eventID {
					found = true
					continue
				}
				kept = append(kept, ev)
			}
			if !found {
				return fmt.Errorf("%w: %q", domain.ErrEventNotFound, eventID)
			}
			_, err = s.catalog.Save(ctx, kept, version)
			return err
		})
	})
	if err != nil {
		return err
	}

	// Commits re-check the catalog under the event lock, so none can land
	// after this sweep.
	removed := 0
	err = s.withLock(ctx, eventLockKey(eventID), func() error {
		return s.retry(ctx, func() error {
			table, version, err := s.attendance.Load(ctx)
			if err != nil {
				return err
			}
			kept := make([]model.AttendanceRecord, 0, len(table))
			for _, r := range table {
				if r.EventID != eventID {
					kept = append(kept, r)
				}
			}
			removed = len(table) - len(kept)
			if removed == 0 {
				return nil
			}
			_, err = s.attendance.Save(ctx, kept, version)
			return err
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "event deleted",
		logger.String("event_id", eventID),
		logger.Int("attendance_rows", removed),
		logger.String("admin", admin),
	)
	return nil
}

// ListAdmins returns roster names. Phones are never exposed.
func (s *Service) ListAdmins(ctx context.Context, sessionID string) ([]string, error) {
	if _, err := s.requireAdmin(ctx, sessionID); err != nil {
		return nil, err
	}
	admins, _, err := s.admins.Load(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(admins))
	for _, a := range admins {
		names = append(names, a.Name)
	}
	return names, nil
}

// AddAdmin appends an administrator.
func (s *Service) AddAdmin(ctx context.Context, sessionID, name, phone string) error {
	admin, err := s.requireAdmin(ctx, sessionID)
	if err != nil {
		return err
	}
	entry := model.Admin{Name: model.NormalizeName(name), Phone: model.NormalizePhone(phone)}
	if entry.Name == "" || entry.Phone == "" {
		return fmt.Errorf("%w: name and phone are required", domain.ErrValidation)
	}

	err = s.withLock(ctx, adminLockKey, func() error {
		return s.retry(ctx, func() error {
			admins, version, err := s.admins.Load(ctx)
			if err != nil {
				return err
			}
			for _, a := range admins {
				if a.Matches(entry.Name, entry.Phone) {
					return fmt.Errorf("%w: %q is already an administrator", domain.ErrValidation, entry.Name)
				}
			}
			_, err = s.admins.Save(ctx, append(admins, entry), version)
			return err
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "administrator added", logger.String("name", entry.Name), logger.String("by", admin))
	return nil
}

// RemoveAdmin removes every roster entry with the given name. The last
// administrator cannot be removed.
func (s *Service) RemoveAdmin(ctx context.Context, sessionID, name string) error {
	admin, err := s.requireAdmin(ctx, sessionID)
	if err != nil {
		return err
	}
	name = model.NormalizeName(name)

	err = s.withLock(ctx, adminLockKey, func() error {
		return s.retry(ctx, func() error {
			admins, version, err := s.admins.Load(ctx)
			if err != nil {
				return err
			}
			kept := make([]model.Admin, 0, len(admins))
			for _, a := range admins {
				if model.NormalizeName(a.Name) != name {
					kept = append(kept, a)
				}
			}
			switch {
			case len(kept) == len(admins):
				return fmt.Errorf("%w: no administrator named %q", domain.ErrValidation, name)
			case len(kept) == 0:
				return fmt.Errorf("%w: cannot remove the last administrator", domain.ErrValidation)
			}
			_, err = s.admins.Save(ctx, kept, version)
			return err
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "administrator removed", logger.String("name", name), logger.String("by", admin))
	return nil
}
