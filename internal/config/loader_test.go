package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/turnout/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// isolate gives each loader test a fresh cwd without a .env file.
func isolate(t *testing.T) context.Context {
	t.Helper()
	t.Chdir(t.TempDir())
	return context.Background()
}

func TestLoad_Defaults(t *testing.T) {
	ctx := isolate(t)

	convey.Convey("Given no file and no environment", t, func() {
		cfg, err := config.Load(ctx)

		convey.Convey("Then defaults are returned", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WriterQueueSize, convey.ShouldEqual, 256)
		})
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	ctx := isolate(t)
	t.Setenv("TURNOUT_ADDR", ":8080")
	t.Setenv("TURNOUT_WRITER_SHARDS", "3")
	t.Setenv("TURNOUT_VISIBILITY_WINDOW_HOURS", "48")
	t.Setenv("TURNOUT_STORE_BACKEND", "sqlite")

	convey.Convey("Given environment overrides", t, func() {
		cfg, err := config.Load(ctx)

		convey.Convey("Then they replace defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.WriterShards, convey.ShouldEqual, 3)
			convey.So(cfg.VisibilityWindowHours, convey.ShouldEqual, 48)
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendSQLite)
		})
	})
}

func TestLoad_FileAndEnv(t *testing.T) {
	ctx := isolate(t)
	path := writeFile(t, "turnout.yaml", `
addr: ":9090"
writer_queue_size: 64
timezone: UTC
default_locale: en
`)
	t.Setenv("TURNOUT_CONFIG", path)
	t.Setenv("TURNOUT_WRITER_QUEUE_SIZE", "32")

	convey.Convey("Given a YAML file and an env override", t, func() {
		cfg, err := config.Load(ctx)

		convey.Convey("Then env wins over the file and the file over defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.WriterQueueSize, convey.ShouldEqual, 32)
			convey.So(cfg.Timezone, convey.ShouldEqual, "UTC")
			convey.So(cfg.DefaultLocale, convey.ShouldEqual, "en")
			convey.So(cfg.ReconcileMaxAttempts, convey.ShouldEqual, 5)
		})
	})
}

func TestLoad_Dotenv(t *testing.T) {
	ctx := isolate(t)
	path := writeFile(t, "custom.env", "TURNOUT_BOOTSTRAP_ADMIN_NAME=root\nTURNOUT_BOOTSTRAP_ADMIN_PHONE=010-9999-9999\n")
	t.Setenv("TURNOUT_ENV_FILE", path)
	// t.Setenv registers the restore; the variables must be absent for
	// godotenv to fill them.
	t.Setenv("TURNOUT_BOOTSTRAP_ADMIN_NAME", "")
	t.Setenv("TURNOUT_BOOTSTRAP_ADMIN_PHONE", "")
	_ = os.Unsetenv("TURNOUT_BOOTSTRAP_ADMIN_NAME")
	_ = os.Unsetenv("TURNOUT_BOOTSTRAP_ADMIN_PHONE")

	convey.Convey("Given a .env file", t, func() {
		cfg, err := config.Load(ctx)

		convey.Convey("Then its values are applied", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.BootstrapAdminName, convey.ShouldEqual, "root")
			convey.So(cfg.BootstrapAdminPhone, convey.ShouldEqual, "010-9999-9999")
		})
	})
}

func TestLoad_Failures(t *testing.T) {
	convey.Convey("Given a broken YAML file", t, func() {
		ctx := isolate(t)
		t.Setenv("TURNOUT_CONFIG", writeFile(t, "bad.yaml", "invalid: yaml: content: ["))

		cfg, err := config.Load(ctx)

		convey.Convey("Then loading fails with ErrLoadConfig", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a missing config file", t, func() {
		ctx := isolate(t)
		t.Setenv("TURNOUT_CONFIG", "/non/existent/file.yaml")

		_, err := config.Load(ctx)

		convey.Convey("Then loading fails", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

func TestLoad_InvalidValue(t *testing.T) {
	ctx := isolate(t)
	t.Setenv("TURNOUT_WRITER_SHARDS", "0")

	convey.Convey("Given an invalid value", t, func() {
		_, err := config.Load(ctx)

		convey.Convey("Then validation rejects it", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestLoad_NonNumeric(t *testing.T) {
	ctx := isolate(t)
	t.Setenv("TURNOUT_WRITER_SHARDS", "many")

	convey.Convey("Given a non-numeric value", t, func() {
		_, err := config.Load(ctx)

		convey.Convey("Then decoding fails", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
