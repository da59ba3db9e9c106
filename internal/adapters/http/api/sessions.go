package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/turnout/internal/adapters/i18n"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/wizard"
)

// SessionsHandler drives the voting wizard over HTTP.
type SessionsHandler struct {
	deps       WizardDependencies
	errors     *errorWriter
	translator *i18n.Translator
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps WizardDependencies, ew *errorWriter, t *i18n.Translator) *SessionsHandler {
	return &SessionsHandler{deps: deps, errors: ew, translator: t}
}

type sessionResponse struct {
	ID          string          `json:"id"`
	State       wizard.State    `json:"state"`
	Draft       *model.Draft    `json:"draft,omitempty"`
	Voted       []string        `json:"voted"`
	LastReceipt *wizard.Receipt `json:"last_receipt,omitempty"`
	Admin       bool            `json:"admin"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Message     string          `json:"message,omitempty"`
}

func viewSession(s *wizard.Session) sessionResponse {
	voted := make([]string, 0, len(s.Voted))
	for id, ok := range s.Voted {
		if ok {
			voted = append(voted, id)
		}
	}
	return sessionResponse{
		ID:          s.ID,
		State:       s.State,
		Draft:       s.Draft,
		Voted:       voted,
		LastReceipt: s.LastReceipt,
		Admin:       s.Admin != "",
		UpdatedAt:   s.UpdatedAt,
	}
}

type selectRequest struct {
	EventID string `json:"event_id"`
}

type identityRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Companion bool   `json:"companion"`
}

type afterpartyRequest struct {
	Afterparty model.Afterparty `json:"afterparty"`
}

// HandleCreate handles POST /api/v1/sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.NewSession(r.Context())
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewSession(sess))
}

// HandleGet handles GET /api/v1/sessions/{sessionID}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.Session(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, r, sess, err)
}

// HandleSelect handles POST /api/v1/sessions/{sessionID}/select.
func (h *SessionsHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	sess, err := h.deps.SelectEvent(r.Context(), chi.URLParam(r, "sessionID"), req.EventID)
	h.respond(w, r, sess, err)
}

// HandleIdentity handles POST /api/v1/sessions/{sessionID}/identity.
func (h *SessionsHandler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	sess, err := h.deps.SetIdentity(r.Context(), chi.URLParam(r, "sessionID"), req.Name, req.Phone, req.Companion)
	h.respond(w, r, sess, err)
}

// HandleAttendance handles POST /api/v1/sessions/{sessionID}/attendance.
func (h *SessionsHandler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.ConfirmAttendance(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, r, sess, err)
}

// HandleAfterparty handles POST /api/v1/sessions/{sessionID}/afterparty.
func (h *SessionsHandler) HandleAfterparty(w http.ResponseWriter, r *http.Request) {
	var req afterpartyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	sess, err := h.deps.ChooseAfterparty(r.Context(), chi.URLParam(r, "sessionID"), req.Afterparty)
	h.respond(w, r, sess, err)
}

// HandleSubmit handles POST /api/v1/sessions/{sessionID}/submit. A failed
// submit leaves the session back at event selection.
func (h *SessionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.Submit(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	resp := viewSession(sess)
	if sess.LastReceipt != nil {
		locale := h.translator.Match(r.Header.Get("Accept-Language"))
		resp.Message = h.translator.T(locale.String(), i18n.MsgSubmitted, map[string]any{"Event": sess.LastReceipt.EventID})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRestart handles POST /api/v1/sessions/{sessionID}/restart.
func (h *SessionsHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.Restart(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, r, sess, err)
}

// HandleCancel handles POST /api/v1/sessions/{sessionID}/cancel.
func (h *SessionsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.Cancel(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, r, sess, err)
}

func (h *SessionsHandler) respond(w http.ResponseWriter, r *http.Request, sess *wizard.Session, err error) {
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}
