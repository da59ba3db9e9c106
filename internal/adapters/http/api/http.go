// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/turnout/internal/adapters/calendar"
	"github.com/okian/turnout/internal/adapters/i18n"
	"github.com/okian/turnout/internal/domain/attendance"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/visibility"
	"github.com/okian/turnout/internal/domain/wizard"
	"github.com/okian/turnout/pkg/logger"
)

// SessionHeader carries the wizard or admin session id.
const SessionHeader = "X-Session-ID"

// WizardDependencies drive the voting flow.
type WizardDependencies interface {
	NewSession(ctx context.Context) (*wizard.Session, error)
	Session(ctx context.Context, id string) (*wizard.Session, error)
	Options(ctx context.Context, sessionID string) ([]wizard.Option, error)
	SelectEvent(ctx context.Context, sessionID, eventID string) (*wizard.Session, error)
	SetIdentity(ctx context.Context, sessionID, name, phone string, companion bool) (*wizard.Session, error)
	ConfirmAttendance(ctx context.Context, sessionID string) (*wizard.Session, error)
	ChooseAfterparty(ctx context.Context, sessionID string, choice model.Afterparty) (*wizard.Session, error)
	Submit(ctx context.Context, sessionID string) (*wizard.Session, error)
	Restart(ctx context.Context, sessionID string) (*wizard.Session, error)
	Cancel(ctx context.Context, sessionID string) (*wizard.Session, error)
}

// EventDependencies expose the catalog and attendance views.
type EventDependencies interface {
	ActiveEvents(ctx context.Context) ([]visibility.Status, error)
	Summary(ctx context.Context, eventID string) (attendance.Summary, error)
}

// AdminDependencies back the administrator routes.
type AdminDependencies interface {
	AdminLogin(ctx context.Context, sessionID, name, phone string) (*wizard.Session, error)
	AdminLogout(ctx context.Context, sessionID string) (*wizard.Session, error)
	CreateEvent(ctx context.Context, sessionID string, ev model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, sessionID, eventID string) error
	ListAdmins(ctx context.Context, sessionID string) ([]string, error)
	AddAdmin(ctx context.Context, sessionID, name, phone string) error
	RemoveAdmin(ctx context.Context, sessionID, name string) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	WizardDependencies
	EventDependencies
	AdminDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	eventsHandler   *EventsHandler
	adminHandler    *AdminHandler

	errors *errorWriter
	log    logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{
		translator: nil,
		exporter:   nil,
		now:        time.Now,
		log:        logger.Get().Named("http"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.translator == nil {
		cfg.translator = i18n.NewTranslator("ko")
	}
	if cfg.exporter == nil {
		cfg.exporter = calendar.NewExporter(time.Local)
	}

	ew := &errorWriter{translator: cfg.translator, log: cfg.log}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps, ew, cfg.translator),
		eventsHandler:   NewEventsHandler(deps, cfg.exporter, cfg.now, ew),
		adminHandler:    NewAdminHandler(deps, ew),
		errors:          ew,
		log:             cfg.log,
	}
}

// Register attaches middleware and all HTTP routes to r. It must run before
// any other route is added to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.eventsHandler.HandleListEvents)
		r.Get("/events/{eventID}/attendance", s.eventsHandler.HandleAttendance)
		r.Get("/calendar.ics", s.eventsHandler.HandleCalendar)

		r.Post("/sessions", s.sessionsHandler.HandleCreate)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.sessionsHandler.HandleGet)
			r.Post("/select", s.sessionsHandler.HandleSelect)
			r.Post("/identity", s.sessionsHandler.HandleIdentity)
			r.Post("/attendance", s.sessionsHandler.HandleAttendance)
			r.Post("/afterparty", s.sessionsHandler.HandleAfterparty)
			r.Post("/submit", s.sessionsHandler.HandleSubmit)
			r.Post("/restart", s.sessionsHandler.HandleRestart)
			r.Post("/cancel", s.sessionsHandler.HandleCancel)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.adminHandler.HandleLogin)
			r.Group(func(r chi.Router) {
				r.Use(requireSessionHeader(s.errors))
				r.Post("/logout", s.adminHandler.HandleLogout)
				r.Post("/events", s.adminHandler.HandleCreateEvent)
				r.Delete("/events/{eventID}", s.adminHandler.HandleDeleteEvent)
				r.Get("/admins", s.adminHandler.HandleListAdmins)
				r.Post("/admins", s.adminHandler.HandleAddAdmin)
				r.Delete("/admins/{name}", s.adminHandler.HandleRemoveAdmin)
			})
		})
	})
}

// NewRouter returns a chi router with the API registered.
func (s *Server) NewRouter(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind("decode body", ErrBadRequest, err)
	}
	return nil
}
