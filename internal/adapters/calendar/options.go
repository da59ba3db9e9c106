package calendar

import "time"

// Option configures an Exporter.
type Option func(*Exporter)

// WithDuration sets the assumed length of a game.
func WithDuration(d time.Duration) Option {
	return func(e *Exporter) {
		if d > 0 {
			e.duration = d
		}
	}
}

// WithProductID sets the PRODID of the feed.
func WithProductID(id string) Option {
	return func(e *Exporter) {
		if id != "" {
			e.prodID = id
		}
	}
}

// WithUIDHost sets the host part appended to every VEVENT UID.
func WithUIDHost(host string) Option {
	return func(e *Exporter) {
		if host != "" {
			e.uidHost = host
		}
	}
}
