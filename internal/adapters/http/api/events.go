package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/turnout/internal/adapters/calendar"
	"github.com/okian/turnout/internal/domain/wizard"
)

// EventsDependencies is what the events handler reads from.
type EventsDependencies interface {
	EventDependencies
	Options(ctx context.Context, sessionID string) ([]wizard.Option, error)
}

// EventsHandler serves the event list, summaries and the calendar feed.
type EventsHandler struct {
	deps     EventsDependencies
	exporter *calendar.Exporter
	now      func() time.Time
	errors   *errorWriter
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventsDependencies, exporter *calendar.Exporter, now func() time.Time, ew *errorWriter) *EventsHandler {
	return &EventsHandler{deps: deps, exporter: exporter, now: now, errors: ew}
}

type eventsResponse struct {
	Events []wizard.Option `json:"events"`
}

// HandleListEvents handles GET /api/v1/events. With a session header the
// actions reflect what that session already voted on.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := h.deps.Options(r.Context(), r.Header.Get(SessionHeader))
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	if opts == nil {
		opts = []wizard.Option{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: opts})
}

// HandleAttendance handles GET /api/v1/events/{eventID}/attendance.
func (h *EventsHandler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Summary(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleCalendar handles GET /api/v1/calendar.ics.
func (h *EventsHandler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.deps.ActiveEvents(r.Context())
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.exporter.Encode(&buf, statuses, h.now()); err != nil {
		h.errors.write(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="turnout.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
