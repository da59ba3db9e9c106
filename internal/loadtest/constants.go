package loadtest

import "time"

// Defaults applied by Normalize.
const (
	DefaultVoters   = 200
	DefaultRevoters = 20
	DefaultAttempts = 5
	DefaultTimeout  = 30 * time.Second
	DefaultOpponent = "LOADTEST"

	// WorkerChannelMultiplier sizes the voter channel relative to workers.
	WorkerChannelMultiplier = 2
	// PercentageMultiplier converts ratios for reporting.
	PercentageMultiplier = 100

	retryBackoff = 50 * time.Millisecond
	gameLeadDays = 2
)

// Normalize fills zero fields with defaults.
func (c *Config) Normalize(workers int) {
	if c.Voters <= 0 {
		c.Voters = DefaultVoters
	}
	if c.Revoters < 0 {
		c.Revoters = 0
	}
	if c.Revoters > c.Voters {
		c.Revoters = c.Voters
	}
	if c.Workers <= 0 {
		c.Workers = workers
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Opponent == "" {
		c.Opponent = DefaultOpponent
	}
}
