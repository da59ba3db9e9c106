package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/turnout/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Timezone, convey.ShouldEqual, "Asia/Seoul")
			convey.So(cfg.VisibilityWindow(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, 30*time.Minute)
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.WriterShards, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.ReconcileMaxAttempts, convey.ShouldEqual, 5)
			convey.So(cfg.DefaultLocale, convey.ShouldEqual, "ko")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When resolving the timezone", func() {
			loc, err := cfg.Location()

			convey.Convey("Then it loads", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(loc.String(), convey.ShouldEqual, "Asia/Seoul")
			})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the backend is unknown", func() {
			cfg.StoreBackend = "excel"

			convey.Convey("Then validation fails with ErrInvalidConfig", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store_backend")
			})
		})

		convey.Convey("When only half of the bootstrap admin is set", func() {
			cfg.BootstrapAdminName = "root"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When redis is selected without a URL", func() {
			cfg.LockBackend = config.BackendRedis
			cfg.RedisURL = ""

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the timezone is bogus", func() {
			cfg.Timezone = "Mars/Olympus"

			convey.Convey("Then validation and Location both fail", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
				_, err := cfg.Location()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
