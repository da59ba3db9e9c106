// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"strings"
	"time"
)

// Layouts used by event rows in the catalog sheet.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// deadlineLayouts are tried in order; a clock-only deadline is anchored on the
// event date.
var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

var (
	errMissingDeadline = errors.New("vote deadline is empty")
	errMissingStart    = errors.New("start date or time is empty")
)

// Event is one scheduled game in the catalog. It is owned by administrators
// and never mutated by the voting flow.
type Event struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Opponent     string `json:"opponent"`
	StartTime    string `json:"start_time"`
	Location     string `json:"location"`
	VoteDeadline string `json:"vote_deadline"`
}

// EventID derives the catalog id of a game from its date and opponent.
func EventID(date, opponent string) string {
	return strings.TrimSpace(date) + " vs " + strings.TrimSpace(opponent)
}

// Normalize trims every field and fills in the derived id.
func (e Event) Normalize() Event {
	e.Date = strings.TrimSpace(e.Date)
	e.Opponent = strings.TrimSpace(e.Opponent)
	e.StartTime = strings.TrimSpace(e.StartTime)
	e.Location = strings.TrimSpace(e.Location)
	e.VoteDeadline = strings.TrimSpace(e.VoteDeadline)
	e.ID = EventID(e.Date, e.Opponent)
	return e
}

// Start returns the kickoff instant in loc.
func (e Event) Start(loc *time.Location) (time.Time, error) {
	if e.Date == "" || e.StartTime == "" {
		return time.Time{}, errMissingStart
	}
	return time.ParseInLocation(DateLayout+" "+ClockLayout, e.Date+" "+e.StartTime, loc)
}

// Deadline parses the vote deadline in loc. Callers must treat any error as
// "voting closed".
func (e Event) Deadline(loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(e.VoteDeadline)
	if raw == "" {
		return time.Time{}, errMissingDeadline
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	// Clock-only deadline ("15:00") on the game day.
	return time.ParseInLocation(DateLayout+" "+ClockLayout, e.Date+" "+raw, loc)
}

// Catalog is the set of known events keyed by id.
type Catalog map[string]Event

// NewCatalog indexes events by id. The first event with a given id wins.
func NewCatalog(events []Event) Catalog {
	c := make(Catalog, len(events))
	for _, ev := range events {
		if _, dup := c[ev.ID]; dup {
			continue
		}
		c[ev.ID] = ev
	}
	return c
}

// Lookup returns the event with the given id.
func (c Catalog) Lookup(id string) (Event, bool) {
	ev, ok := c[id]
	return ev, ok
}
