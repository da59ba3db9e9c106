package redisclient_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/turnout/internal/adapters/redisclient"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConnect(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running Redis", t, func() {
		mr := miniredis.RunT(t)

		Convey("When connecting by host:port", func() {
			c, err := redisclient.Connect(ctx, mr.Addr())

			Convey("Then the client works", func() {
				So(err, ShouldBeNil)
				So(c.Set(ctx, "k", "v", 0).Err(), ShouldBeNil)
				_ = c.Close()
			})
		})

		Convey("When connecting by URL", func() {
			c, err := redisclient.Connect(ctx, "redis://"+mr.Addr()+"/0")

			Convey("Then the client works", func() {
				So(err, ShouldBeNil)
				_ = c.Close()
			})
		})
	})

	Convey("Given a malformed URL", t, func() {
		_, err := redisclient.Connect(ctx, "redis://%zz")

		Convey("Then Connect fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
