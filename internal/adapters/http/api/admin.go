package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/turnout/internal/domain/model"
)

// AdminHandler serves catalog and roster management.
type AdminHandler struct {
	deps   AdminDependencies
	errors *errorWriter
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, ew *errorWriter) *AdminHandler {
	return &AdminHandler{deps: deps, errors: ew}
}

type credentialsRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
}

type createEventRequest struct {
	Date         string `json:"date"`
	Opponent     string `json:"opponent"`
	StartTime    string `json:"start_time"`
	Location     string `json:"location"`
	VoteDeadline string `json:"vote_deadline"`
}

type adminsResponse struct {
	Admins []string `json:"admins"`
}

// HandleLogin handles POST /api/v1/admin/login. An existing session may be
// promoted by sending its id in the session header.
func (h *AdminHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	sess, err := h.deps.AdminLogin(r.Context(), r.Header.Get(SessionHeader), req.Name, req.Phone)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{SessionID: sess.ID})
}

// HandleLogout handles POST /api/v1/admin/logout. The session survives as a
// plain voter session.
func (h *AdminHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.AdminLogout(r.Context(), r.Header.Get(SessionHeader)); err != nil {
		h.errors.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateEvent handles POST /api/v1/admin/events.
func (h *AdminHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	ev, err := h.deps.CreateEvent(r.Context(), r.Header.Get(SessionHeader), model.Event{
		Date:         req.Date,
		Opponent:     req.Opponent,
		StartTime:    req.StartTime,
		Location:     req.Location,
		VoteDeadline: req.VoteDeadline,
	})
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// HandleDeleteEvent handles DELETE /api/v1/admin/events/{eventID}.
func (h *AdminHandler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteEvent(r.Context(), r.Header.Get(SessionHeader), chi.URLParam(r, "eventID")); err != nil {
		h.errors.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListAdmins handles GET /api/v1/admin/admins.
func (h *AdminHandler) HandleListAdmins(w http.ResponseWriter, r *http.Request) {
	names, err := h.deps.ListAdmins(r.Context(), r.Header.Get(SessionHeader))
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, adminsResponse{Admins: names})
}

// HandleAddAdmin handles POST /api/v1/admin/admins.
func (h *AdminHandler) HandleAddAdmin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	if err := h.deps.AddAdmin(r.Context(), r.Header.Get(SessionHeader), req.Name, req.Phone); err != nil {
		h.errors.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleRemoveAdmin handles DELETE /api/v1/admin/admins/{name}.
func (h *AdminHandler) HandleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.RemoveAdmin(r.Context(), r.Header.Get(SessionHeader), chi.URLParam(r, "name")); err != nil {
		h.errors.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
