package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/turnout/internal/adapters/calendar"
	"github.com/okian/turnout/internal/adapters/http/api"
	"github.com/okian/turnout/internal/adapters/i18n"
	service "github.com/okian/turnout/internal/app"
	"github.com/okian/turnout/internal/domain/visibility"
	"github.com/okian/turnout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

const game = "2025-05-02 vs LG"

type harness struct {
	t      *testing.T
	router chi.Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := func() time.Time { return now }
	svc := service.New(
		service.WithClock(clock),
		service.WithFilter(visibility.New(24*time.Hour, time.UTC)),
		service.WithBootstrapAdmin("Kim", "010-0000-0000"),
		service.WithShards(2),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	srv := api.NewServer(svc, svc,
		api.WithTranslator(i18n.NewTranslator("ko")),
		api.WithCalendar(calendar.NewExporter(time.UTC)),
		api.WithClock(clock),
	)
	return &harness{t: t, router: srv.NewRouter(context.Background())}
}

func (h *harness) do(method, path, session string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(api.SessionHeader, session)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func (h *harness) adminSession() string {
	rec := h.do(http.MethodPost, "/api/v1/admin/login", "", map[string]string{"name": "Kim", "phone": "01000000000"})
	So(rec.Code, ShouldEqual, http.StatusOK)
	id, _ := decode(rec)["session_id"].(string)
	So(id, ShouldNotBeEmpty)
	return id
}

func (h *harness) createGame(admin string) {
	rec := h.do(http.MethodPost, "/api/v1/admin/events", admin, map[string]string{
		"date":          "2025-05-02",
		"opponent":      "LG",
		"start_time":    "18:30",
		"location":      "Jamsil",
		"vote_deadline": "2025-05-02 12:00",
	})
	So(rec.Code, ShouldEqual, http.StatusCreated)
	So(decode(rec)["id"], ShouldEqual, game)
}

func TestVotingFlow(t *testing.T) {
	Convey("Given a server with one open game", t, func() {
		h := newHarness(t)
		h.createGame(h.adminSession())

		Convey("When a voter walks the wizard", func() {
			rec := h.do(http.MethodPost, "/api/v1/sessions", "", nil)
			So(rec.Code, ShouldEqual, http.StatusCreated)
			sid := decode(rec)["id"].(string)
			base := "/api/v1/sessions/" + sid

			So(h.do(http.MethodPost, base+"/select", "", map[string]string{"event_id": game}).Code, ShouldEqual, http.StatusOK)
			So(h.do(http.MethodPost, base+"/identity", "", map[string]any{"name": "Lee", "phone": "010-1111-1111", "companion": true}).Code, ShouldEqual, http.StatusOK)
			So(h.do(http.MethodPost, base+"/attendance", "", nil).Code, ShouldEqual, http.StatusOK)
			So(h.do(http.MethodPost, base+"/afterparty", "", map[string]string{"afterparty": "attending"}).Code, ShouldEqual, http.StatusOK)
			submit := h.do(http.MethodPost, base+"/submit", "", nil, "Accept-Language", "en-US")

			Convey("Then the vote is stored and summarised", func() {
				So(submit.Code, ShouldEqual, http.StatusOK)
				body := decode(submit)
				So(body["state"], ShouldEqual, "submitted")
				So(body["message"], ShouldEqual, "Your vote for "+game+" was saved.")

				summary := h.do(http.MethodGet, "/api/v1/events/"+url.PathEscape(game)+"/attendance", "", nil)
				So(summary.Code, ShouldEqual, http.StatusOK)
				s := decode(summary)
				So(s["total"], ShouldEqual, float64(2))
				So(s["companions"], ShouldEqual, float64(1))
				So(s["afterparty_attending"], ShouldEqual, float64(2))
			})

			Convey("Then the event list offers a revote to this session", func() {
				list := decode(h.do(http.MethodGet, "/api/v1/events", sid, nil))
				events := list["events"].([]any)
				So(len(events), ShouldEqual, 1)
				So(events[0].(map[string]any)["action"], ShouldEqual, "revote")

				anon := decode(h.do(http.MethodGet, "/api/v1/events", "", nil))
				So(anon["events"].([]any)[0].(map[string]any)["action"], ShouldEqual, "vote")
			})
		})

		Convey("When the calendar is requested", func() {
			rec := h.do(http.MethodGet, "/api/v1/calendar.ics", "", nil)

			Convey("Then one VEVENT is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/calendar")
				So(strings.Count(rec.Body.String(), "BEGIN:VEVENT"), ShouldEqual, 1)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given a server", t, func() {
		h := newHarness(t)

		Convey("When the session does not exist", func() {
			rec := h.do(http.MethodGet, "/api/v1/sessions/nope", "", nil)

			Convey("Then 404 with a Korean message is returned by default", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				body := decode(rec)
				So(body["code"], ShouldEqual, "session_not_found")
				So(body["message"], ShouldNotEqual, "session_not_found")
			})
		})

		Convey("When a step is taken out of order", func() {
			sid := decode(h.do(http.MethodPost, "/api/v1/sessions", "", nil))["id"].(string)
			rec := h.do(http.MethodPost, "/api/v1/sessions/"+sid+"/attendance", "", nil)

			Convey("Then 409 invalid_transition is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decode(rec)["code"], ShouldEqual, "invalid_transition")
			})
		})

		Convey("When an unknown event is selected", func() {
			sid := decode(h.do(http.MethodPost, "/api/v1/sessions", "", nil))["id"].(string)
			rec := h.do(http.MethodPost, "/api/v1/sessions/"+sid+"/select", "", map[string]string{"event_id": "nope"})

			Convey("Then 404 event_not_found is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decode(rec)["code"], ShouldEqual, "event_not_found")
			})
		})

		Convey("When the body is malformed", func() {
			sid := decode(h.do(http.MethodPost, "/api/v1/sessions", "", nil))["id"].(string)
			rec := h.do(http.MethodPost, "/api/v1/sessions/"+sid+"/select", "", map[string]string{"bogus": "x"})

			Convey("Then 400 validation_error is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(rec)["code"], ShouldEqual, "validation_error")
			})
		})

		Convey("When admin routes are called without a session", func() {
			rec := h.do(http.MethodGet, "/api/v1/admin/admins", "", nil, "Accept-Language", "en")

			Convey("Then 401 with an English message is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
				body := decode(rec)
				So(body["code"], ShouldEqual, "unauthorized")
				So(body["message"], ShouldEqual, "Administrator credentials are required.")
			})
		})

		Convey("When wrong admin credentials are used", func() {
			rec := h.do(http.MethodPost, "/api/v1/admin/login", "", map[string]string{"name": "Kim", "phone": "999"})

			Convey("Then 401 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When the same game is created twice", func() {
			admin := h.adminSession()
			h.createGame(admin)
			rec := h.do(http.MethodPost, "/api/v1/admin/events", admin, map[string]string{
				"date": "2025-05-02", "opponent": "LG", "start_time": "18:30", "vote_deadline": "2025-05-02 12:00",
			})

			Convey("Then 409 duplicate_event is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decode(rec)["code"], ShouldEqual, "duplicate_event")
			})
		})
	})
}

func TestAdminRoutes(t *testing.T) {
	Convey("Given a logged in administrator", t, func() {
		h := newHarness(t)
		admin := h.adminSession()

		Convey("When a second admin is added and listed", func() {
			So(h.do(http.MethodPost, "/api/v1/admin/admins", admin, map[string]string{"name": "Park", "phone": "010-2222-2222"}).Code, ShouldEqual, http.StatusCreated)
			list := decode(h.do(http.MethodGet, "/api/v1/admin/admins", admin, nil))

			Convey("Then both names are listed and one can be removed", func() {
				So(list["admins"], ShouldResemble, []any{"Kim", "Park"})
				So(h.do(http.MethodDelete, "/api/v1/admin/admins/Park", admin, nil).Code, ShouldEqual, http.StatusNoContent)
			})
		})

		Convey("When the administrator logs out", func() {
			rec := h.do(http.MethodPost, "/api/v1/admin/logout", admin, nil)
			denied := h.do(http.MethodGet, "/api/v1/admin/admins", admin, nil)
			sess := decode(h.do(http.MethodGet, "/api/v1/sessions/"+admin, "", nil))

			Convey("Then the session keeps working without admin rights", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(denied.Code, ShouldEqual, http.StatusUnauthorized)
				So(sess["admin"], ShouldEqual, false)
				So(sess["state"], ShouldEqual, "selecting_event")
			})
		})

		Convey("When logging out an unknown session", func() {
			rec := h.do(http.MethodPost, "/api/v1/admin/logout", "missing", nil)

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decode(rec)["code"], ShouldEqual, "session_not_found")
			})
		})

		Convey("When a game is created and deleted", func() {
			h.createGame(admin)
			rec := h.do(http.MethodDelete, "/api/v1/admin/events/"+url.PathEscape(game), admin, nil)

			Convey("Then it no longer has a summary", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(h.do(http.MethodGet, "/api/v1/events/"+url.PathEscape(game)+"/attendance", "", nil).Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		h := newHarness(t)

		Convey("Then health, stats and metrics respond", func() {
			So(h.do(http.MethodGet, "/healthz", "", nil).Code, ShouldEqual, http.StatusOK)
			stats := h.do(http.MethodGet, "/stats", "", nil)
			So(stats.Code, ShouldEqual, http.StatusOK)
			So(decode(stats)["started"], ShouldBeTrue)
			metrics := h.do(http.MethodGet, "/metrics", "", nil)
			So(metrics.Code, ShouldEqual, http.StatusOK)
			So(metrics.Body.String(), ShouldContainSubstring, "turnout_voting_http_requests_total")
		})

		Convey("Then a request id is echoed", func() {
			rec := h.do(http.MethodGet, "/healthz", "", nil, api.RequestIDHeader, "abc")
			So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, "abc")
		})
	})
}
