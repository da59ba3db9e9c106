package loadtest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/turnout/internal/adapters/http/api"
	service "github.com/okian/turnout/internal/app"
	"github.com/okian/turnout/internal/domain/attendance"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/visibility"
	"github.com/okian/turnout/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(
		service.WithFilter(visibility.New(24*time.Hour, time.UTC)),
		service.WithBootstrapAdmin("Kim", "010-0000-0000"),
		service.WithShards(4),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc, svc).NewRouter(context.Background()))
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newServer(t)
		cfg := &Config{
			BaseURL:    srv.URL,
			Voters:     30,
			Revoters:   10,
			Workers:    8,
			AdminName:  "Kim",
			AdminPhone: "01000000000",
		}
		cfg.Normalize(4)

		Convey("When the load test runs", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every final ballot is stored exactly once", func() {
				So(err, ShouldBeNil)
				So(stats.Successful, ShouldEqual, 30)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.BallotsCast, ShouldEqual, 40)
				So(stats.Rows, ShouldBeBetweenOrEqual, 30, 60)
			})

			Convey("And a second run reuses the game", func() {
				again, err := Run(context.Background(), cfg)
				So(err, ShouldBeNil)
				So(again.EventID, ShouldEqual, stats.EventID)
			})
		})

		Convey("When the admin credentials are wrong", func() {
			cfg.AdminPhone = "999"
			_, err := Run(context.Background(), cfg)

			Convey("Then the run fails with 401", func() {
				var se *StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Status, ShouldEqual, http.StatusUnauthorized)
			})
		})
	})

	Convey("Given no service", t, func() {
		cfg := &Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}
		cfg.Normalize(1)

		Convey("Then the health check fails", func() {
			_, err := Run(context.Background(), cfg)
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})
}

func TestVerifyResults(t *testing.T) {
	Convey("Given a voter who revoted without a companion", t, func() {
		voter := Voter{Name: "Lee", Phone: "010-1111-1111", Afterparty: model.AfterpartyAttending}
		res := Result{Voter: voter, BatchID: "b2", Stale: []string{"b1"}}
		primary := model.AttendanceRecord{
			EventID: "G", VoterName: "Lee", VoterPhone: "01011111111",
			Attending: true, Afterparty: model.AfterpartyAttending, BatchID: "b2",
		}

		Convey("When the sheet is clean", func() {
			summary := attendance.Summarize([]model.AttendanceRecord{primary}, "G")

			Convey("Then verification passes", func() {
				So(verifyResults([]Result{res}, summary), ShouldBeNil)
			})
		})

		Convey("When the superseded companion survived", func() {
			stale := model.AttendanceRecord{
				EventID: "G", VoterName: model.CompanionName, VoterPhone: model.CompanionPhone,
				Attending: true, Afterparty: model.AfterpartyAttending, Companion: true, BatchID: "b1",
			}
			summary := attendance.Summarize([]model.AttendanceRecord{primary, stale}, "G")

			Convey("Then verification fails", func() {
				So(errors.Is(verifyResults([]Result{res}, summary), ErrVerification), ShouldBeTrue)
			})
		})

		Convey("When the primary is duplicated", func() {
			dup := primary
			dup.BatchID = "b1"
			summary := attendance.Summarize([]model.AttendanceRecord{primary, dup}, "G")

			Convey("Then verification fails", func() {
				So(errors.Is(verifyResults([]Result{res}, summary), ErrVerification), ShouldBeTrue)
			})
		})
	})
}

func TestConfigNormalize(t *testing.T) {
	Convey("Given an empty config", t, func() {
		cfg := &Config{Revoters: 500}
		cfg.Normalize(3)

		Convey("Then defaults apply and revoters are capped", func() {
			So(cfg.Voters, ShouldEqual, DefaultVoters)
			So(cfg.Revoters, ShouldEqual, DefaultVoters)
			So(cfg.Workers, ShouldEqual, 3)
			So(cfg.Attempts, ShouldEqual, DefaultAttempts)
			So(cfg.Opponent, ShouldEqual, DefaultOpponent)
		})
	})
}
