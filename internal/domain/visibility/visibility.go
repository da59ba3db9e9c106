// Package visibility decides which events are listed and which still accept
// votes.
package visibility

import (
	"time"

	"github.com/okian/turnout/internal/domain/model"
)

// DefaultWindow is how long after kickoff an event stays listed.
const DefaultWindow = 24 * time.Hour

// Filter evaluates events against a wall clock.
type Filter struct {
	// Window is the period after start during which an event stays visible.
	Window time.Duration
	// Location interprets the date/clock strings of event rows.
	Location *time.Location
}

// New returns a Filter; non-positive windows and nil locations fall back to
// DefaultWindow and time.Local.
func New(window time.Duration, loc *time.Location) Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	if loc == nil {
		loc = time.Local
	}
	return Filter{Window: window, Location: loc}
}

// Status is the evaluation of one event at one instant.
type Status struct {
	Event   model.Event `json:"event"`
	Visible bool        `json:"visible"`
	Locked  bool        `json:"locked"`
}

// IsVisible reports whether ev is still within its listing horizon. Events
// whose start cannot be parsed are never listed.
func (f Filter) IsVisible(ev model.Event, now time.Time) bool {
	start, err := ev.Start(f.location())
	if err != nil {
		return false
	}
	return !now.After(start.Add(f.Window))
}

// IsLocked reports whether ev refuses new submissions. A missing or
// unparsable deadline locks the event.
func (f Filter) IsLocked(ev model.Event, now time.Time) bool {
	deadline, err := ev.Deadline(f.location())
	if err != nil {
		return true
	}
	return now.After(deadline)
}

// Evaluate computes both predicates for every event.
func (f Filter) Evaluate(events []model.Event, now time.Time) []Status {
	out := make([]Status, 0, len(events))
	for _, ev := range events {
		out = append(out, Status{
			Event:   ev,
			Visible: f.IsVisible(ev, now),
			Locked:  f.IsLocked(ev, now),
		})
	}
	return out
}

// Active returns the visible subset of events, locked ones included.
func (f Filter) Active(events []model.Event, now time.Time) []Status {
	all := f.Evaluate(events, now)
	out := all[:0]
	for _, st := range all {
		if st.Visible {
			out = append(out, st)
		}
	}
	return out
}

func (f Filter) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}
