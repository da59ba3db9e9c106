// Package calendar exports listed events as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/okian/turnout/internal/domain/visibility"
)

const (
	defaultDuration = 3 * time.Hour
	defaultProdID   = "-//turnout//attendance//KO"
	defaultUIDHost  = "turnout"
)

// Exporter renders event statuses as VEVENTs.
type Exporter struct {
	loc      *time.Location
	duration time.Duration
	prodID   string
	uidHost  string
}

// NewExporter creates an exporter that reads event times in loc.
func NewExporter(loc *time.Location, opts ...Option) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	e := &Exporter{loc: loc, duration: defaultDuration, prodID: defaultProdID, uidHost: defaultUIDHost}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode writes one VCALENDAR. Hidden events and events whose start cannot
// be parsed are skipped.
func (e *Exporter) Encode(w io.Writer, statuses []visibility.Status, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, e.prodID)

	for _, st := range statuses {
		if !st.Visible {
			continue
		}
		start, err := st.Event.Start(e.loc)
		if err != nil {
			continue
		}

		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, st.Event.ID+"@"+e.uidHost)
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		ev.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		ev.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(e.duration).UTC())
		ev.Props.SetText(ical.PropSummary, st.Event.ID)
		if st.Event.Location != "" {
			ev.Props.SetText(ical.PropLocation, st.Event.Location)
		}
		ev.Props.SetText(ical.PropDescription, describe(st))
		cal.Children = append(cal.Children, ev.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func describe(st visibility.Status) string {
	var b strings.Builder
	deadline := st.Event.VoteDeadline
	if deadline == "" {
		deadline = "-"
	}
	fmt.Fprintf(&b, "vote deadline: %s", deadline)
	if st.Locked {
		b.WriteString(" (closed)")
	}
	return b.String()
}
