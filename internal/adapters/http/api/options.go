package api

import (
	"time"

	"github.com/okian/turnout/internal/adapters/calendar"
	"github.com/okian/turnout/internal/adapters/i18n"
	"github.com/okian/turnout/pkg/logger"
)

type serverConfig struct {
	translator *i18n.Translator
	exporter   *calendar.Exporter
	now        func() time.Time
	log        logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

// WithTranslator sets the message catalog used for error bodies.
func WithTranslator(t *i18n.Translator) Option {
	return func(c *serverConfig) {
		if t != nil {
			c.translator = t
		}
	}
}

// WithCalendar sets the ICS exporter.
func WithCalendar(e *calendar.Exporter) Option {
	return func(c *serverConfig) {
		if e != nil {
			c.exporter = e
		}
	}
}

// WithClock overrides the time source used for DTSTAMP.
func WithClock(now func() time.Time) Option {
	return func(c *serverConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}
