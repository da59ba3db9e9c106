package attendance_test

import (
	"testing"
	"time"

	"github.com/okian/turnout/internal/domain/attendance"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/reconcile"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSummarize(t *testing.T) {
	catalog := model.Catalog{"G1": {ID: "G1"}, "G2": {ID: "G2"}}
	at := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	Convey("Given an empty table", t, func() {
		s := attendance.Summarize(nil, "G1")

		Convey("Then the summary is empty but valid", func() {
			So(s.EventID, ShouldEqual, "G1")
			So(s.Total, ShouldEqual, 0)
			So(s.Rows, ShouldNotBeNil)
			So(len(s.Rows), ShouldEqual, 0)
		})
	})

	Convey("Given a voter without a companion", t, func() {
		table, err := reconcile.Reconcile(nil, catalog, model.Draft{
			EventID: "G1", BatchID: "a", VoterName: "Lee", VoterPhone: "01011111111",
			Attending: true, Afterparty: model.AfterpartyNotAttending,
		}.Submit(at))
		So(err, ShouldBeNil)
		before := attendance.Summarize(table, "G1").Total

		Convey("When another voter submits with a companion", func() {
			table, err = reconcile.Reconcile(table, catalog, model.Draft{
				EventID: "G1", BatchID: "b", VoterName: "Kim", VoterPhone: "01000000000",
				Attending: true, Afterparty: model.AfterpartyAttending, Companion: true,
			}.Submit(at))
			So(err, ShouldBeNil)
			s := attendance.Summarize(table, "G1")

			Convey("Then the total grows by two", func() {
				So(s.Total, ShouldEqual, before+2)
				So(s.Companions, ShouldEqual, 1)
				So(s.AfterpartyAttending, ShouldEqual, 2)
				So(s.AfterpartyNotAttending, ShouldEqual, 1)
			})

			Convey("Then other events are not counted", func() {
				So(attendance.Summarize(table, "G2").Total, ShouldEqual, 0)
			})
		})
	})
}
