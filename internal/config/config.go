// Package config defines service configuration and its loading hooks.
//
// Conventions:
// - New(ctx) returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and TURNOUT_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	// Default timezone must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

// Backends accepted by the *_backend keys.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Timezone interprets the date and clock strings of the event sheet.
	Timezone string `koanf:"timezone"`
	// VisibilityWindowHours is how long after kickoff an event stays listed.
	VisibilityWindowHours int `koanf:"visibility_window_hours"`
	// SessionTTLMinutes expires idle wizard sessions.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	// StoreBackend is memory or sqlite; StorePath is the sqlite file.
	StoreBackend string `koanf:"store_backend"`
	StorePath    string `koanf:"store_path"`

	// LockBackend and SessionBackend are memory or redis.
	LockBackend    string `koanf:"lock_backend"`
	SessionBackend string `koanf:"session_backend"`
	RedisURL       string `koanf:"redis_url"`

	// WriterShards is the number of single-writer goroutines.
	WriterShards int `koanf:"writer_shards"`
	// WriterQueueSize bounds pending commits per shard.
	WriterQueueSize int `koanf:"writer_queue_size"`
	// ReconcileMaxAttempts caps re-read/rewrite cycles on version conflicts.
	ReconcileMaxAttempts int `koanf:"reconcile_max_attempts"`
	// LockTTLSeconds bounds how long a distributed event lock is held.
	LockTTLSeconds int `koanf:"lock_ttl_seconds"`
	// DedupeSize bounds the committed-batch set.
	DedupeSize int `koanf:"dedupe_size"`

	// DefaultLocale is used when Accept-Language matches nothing.
	DefaultLocale string `koanf:"default_locale"`

	// BootstrapAdminName and BootstrapAdminPhone provision the first
	// administrator when the roster is empty at startup.
	BootstrapAdminName  string `koanf:"bootstrap_admin_name"`
	BootstrapAdminPhone string `koanf:"bootstrap_admin_phone"`
}

// New creates a Config with defaults. The context is reserved for loaders
// that need it.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		Timezone:              "Asia/Seoul",
		VisibilityWindowHours: 24,
		SessionTTLMinutes:     30,
		StoreBackend:          BackendMemory,
		StorePath:             "turnout.db",
		LockBackend:           BackendMemory,
		SessionBackend:        BackendMemory,
		RedisURL:              "redis://localhost:6379/0",
		WriterShards:          runtime.NumCPU(),
		WriterQueueSize:       256,
		ReconcileMaxAttempts:  5,
		LockTTLSeconds:        10,
		DedupeSize:            50_000,
		DefaultLocale:         "ko",
	}
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// VisibilityWindow returns the listing horizon as a duration.
func (c *Config) VisibilityWindow() time.Duration {
	return time.Duration(c.VisibilityWindowHours) * time.Hour
}

// SessionTTL returns the session expiry as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// LockTTL returns the distributed lock expiry as a duration.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("unknown timezone %q", c.Timezone))
	}
	if c.VisibilityWindowHours <= 0 {
		problems = append(problems, "visibility_window_hours must be positive")
	}
	if c.SessionTTLMinutes <= 0 {
		problems = append(problems, "session_ttl_minutes must be positive")
	}
	if !oneOf(c.StoreBackend, BackendMemory, BackendSQLite) {
		problems = append(problems, fmt.Sprintf("store_backend %q must be memory or sqlite", c.StoreBackend))
	}
	if c.StoreBackend == BackendSQLite && c.StorePath == "" {
		problems = append(problems, "store_path is required for sqlite")
	}
	if !oneOf(c.LockBackend, BackendMemory, BackendRedis) {
		problems = append(problems, fmt.Sprintf("lock_backend %q must be memory or redis", c.LockBackend))
	}
	if !oneOf(c.SessionBackend, BackendMemory, BackendRedis) {
		problems = append(problems, fmt.Sprintf("session_backend %q must be memory or redis", c.SessionBackend))
	}
	if (c.LockBackend == BackendRedis || c.SessionBackend == BackendRedis) && c.RedisURL == "" {
		problems = append(problems, "redis_url is required for redis backends")
	}
	if c.WriterShards <= 0 {
		problems = append(problems, "writer_shards must be positive")
	}
	if c.WriterQueueSize <= 0 {
		problems = append(problems, "writer_queue_size must be positive")
	}
	if c.ReconcileMaxAttempts <= 0 {
		problems = append(problems, "reconcile_max_attempts must be positive")
	}
	if c.LockTTLSeconds <= 0 {
		problems = append(problems, "lock_ttl_seconds must be positive")
	}
	if (c.BootstrapAdminName == "") != (c.BootstrapAdminPhone == "") {
		problems = append(problems, "bootstrap_admin_name and bootstrap_admin_phone must be set together")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
