// Package wizard implements the per-user voting flow as an explicit state
// machine. A Session is a plain value: the caller loads it, applies one
// transition and stores it back.
package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/visibility"
)

// State is a wizard step.
type State string

const (
	StateSelectingEvent       State = "selecting_event"
	StateCollectingIdentity   State = "collecting_identity"
	StateConfirmingAttendance State = "confirming_attendance"
	StateConfirmingAfterparty State = "confirming_afterparty"
	StateReviewAndSubmit      State = "review_and_submit"
	StateSubmitted            State = "submitted"
)

// Action labels an event in the selection list.
type Action string

const (
	ActionVote   Action = "vote"
	ActionRevote Action = "revote"
	ActionClosed Action = "closed"
)

// Option is one selectable row of the event list.
type Option struct {
	Event  model.Event `json:"event"`
	Action Action      `json:"action"`
}

// Receipt describes the last successful submission of a session.
type Receipt struct {
	EventID     string           `json:"event_id"`
	BatchID     string           `json:"batch_id"`
	VoterName   string           `json:"voter_name"`
	Afterparty  model.Afterparty `json:"afterparty"`
	Companion   bool             `json:"companion"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// EventChecker resolves the current status of an event at submit time.
type EventChecker interface {
	EventStatus(ctx context.Context, eventID string, now time.Time) (visibility.Status, error)
}

// Committer persists a submission.
type Committer interface {
	Commit(ctx context.Context, sub model.Submission) error
}

// Session is one user's wizard state.
type Session struct {
	ID          string          `json:"id"`
	State       State           `json:"state"`
	Draft       *model.Draft    `json:"draft,omitempty"`
	Voted       map[string]bool `json:"voted,omitempty"`
	LastReceipt *Receipt        `json:"last_receipt,omitempty"`
	Admin       string          `json:"admin,omitempty"`
	AdminPhone  string          `json:"admin_phone,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// New returns a session waiting for an event selection.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateSelectingEvent,
		Voted:     map[string]bool{},
		UpdatedAt: now,
	}
}

// Options labels the visible events for this session. Invisible statuses are
// skipped.
func (s *Session) Options(statuses []visibility.Status) []Option {
	out := make([]Option, 0, len(statuses))
	for _, st := range statuses {
		if !st.Visible {
			continue
		}
		action := ActionVote
		switch {
		case st.Locked:
			action = ActionClosed
		case s.Voted[st.Event.ID]:
			action = ActionRevote
		}
		out = append(out, Option{Event: st.Event, Action: action})
	}
	return out
}

// SelectEvent starts a fresh draft for st. batchID identifies the submission
// batch the draft will produce.
func (s *Session) SelectEvent(st visibility.Status, batchID string, now time.Time) error {
	if err := s.expect(StateSelectingEvent); err != nil {
		return err
	}
	if !st.Visible {
		return fmt.Errorf("%w: %q", domain.ErrEventNotFound, st.Event.ID)
	}
	if st.Locked {
		return fmt.Errorf("%w: %q", domain.ErrEventLocked, st.Event.ID)
	}
	if batchID == "" {
		return fmt.Errorf("%w: empty batch id", domain.ErrValidation)
	}
	s.Draft = &model.Draft{EventID: st.Event.ID, BatchID: batchID}
	s.move(StateCollectingIdentity, now)
	return nil
}

// SetIdentity records who is voting and whether they bring a companion.
func (s *Session) SetIdentity(name, phone string, companion bool, now time.Time) error {
	if err := s.expect(StateCollectingIdentity); err != nil {
		return err
	}
	name = model.NormalizeName(name)
	phone = model.NormalizePhone(phone)
	if name == "" || phone == "" {
		return fmt.Errorf("%w: name and phone are required", domain.ErrValidation)
	}
	if name == model.CompanionName && phone == model.CompanionPhone {
		return fmt.Errorf("%w: reserved identity", domain.ErrValidation)
	}
	s.Draft.VoterName = name
	s.Draft.VoterPhone = phone
	s.Draft.Companion = companion
	s.move(StateConfirmingAttendance, now)
	return nil
}

// ConfirmAttendance marks the voter as attending. Declining is done by
// cancelling the wizard.
func (s *Session) ConfirmAttendance(now time.Time) error {
	if err := s.expect(StateConfirmingAttendance); err != nil {
		return err
	}
	s.Draft.Attending = true
	s.move(StateConfirmingAfterparty, now)
	return nil
}

// ChooseAfterparty records the afterparty answer.
func (s *Session) ChooseAfterparty(choice model.Afterparty, now time.Time) error {
	if err := s.expect(StateConfirmingAfterparty); err != nil {
		return err
	}
	if !choice.Valid() {
		return fmt.Errorf("%w: afterparty %q", domain.ErrValidation, choice)
	}
	s.Draft.Afterparty = choice
	s.move(StateReviewAndSubmit, now)
	return nil
}

// Submit re-checks the event and hands the stamped draft to committer. On any
// failure the draft is discarded and the session returns to event selection.
func (s *Session) Submit(ctx context.Context, now time.Time, events EventChecker, committer Committer) (Receipt, error) {
	if err := s.expect(StateReviewAndSubmit); err != nil {
		return Receipt{}, err
	}
	sub := s.Draft.Submit(now)

	st, err := events.EventStatus(ctx, sub.EventID, now)
	if err == nil {
		switch {
		case !st.Visible:
			err = fmt.Errorf("%w: %q", domain.ErrEventNotFound, sub.EventID)
		case st.Locked:
			err = fmt.Errorf("%w: %q", domain.ErrEventLocked, sub.EventID)
		}
	}
	if err == nil {
		err = committer.Commit(ctx, sub)
	}
	if err != nil {
		s.reset(now)
		return Receipt{}, err
	}

	r := Receipt{
		EventID:     sub.EventID,
		BatchID:     sub.BatchID,
		VoterName:   sub.VoterName,
		Afterparty:  sub.Afterparty,
		Companion:   sub.Companion,
		SubmittedAt: sub.SubmittedAt,
	}
	if s.Voted == nil {
		s.Voted = map[string]bool{}
	}
	s.Voted[sub.EventID] = true
	s.LastReceipt = &r
	s.Draft = nil
	s.move(StateSubmitted, now)
	return r, nil
}

// Restart begins a re-vote after a successful submission.
func (s *Session) Restart(now time.Time) error {
	if err := s.expect(StateSubmitted); err != nil {
		return err
	}
	s.reset(now)
	return nil
}

// Cancel abandons the current draft from any state.
func (s *Session) Cancel(now time.Time) {
	s.reset(now)
}

func (s *Session) expect(want State) error {
	if s.State != want {
		return fmt.Errorf("%w: in %s, want %s", domain.ErrInvalidTransition, s.State, want)
	}
	if want != StateSelectingEvent && want != StateSubmitted && s.Draft == nil {
		return fmt.Errorf("%w: no draft in %s", domain.ErrInvalidTransition, s.State)
	}
	return nil
}

func (s *Session) reset(now time.Time) {
	s.Draft = nil
	s.move(StateSelectingEvent, now)
}

func (s *Session) move(to State, now time.Time) {
	s.State = to
	s.UpdatedAt = now
}
