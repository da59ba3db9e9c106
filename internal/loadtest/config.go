// Package loadtest drives concurrent voters through the HTTP API and checks
// that every final ballot is reflected exactly once in the attendance sheet.
package loadtest

import (
	"time"

	"github.com/okian/turnout/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Voters     int           // Number of distinct voters
	Revoters   int           // How many of them vote a second time
	Workers    int           // Number of concurrent workers
	Attempts   int           // Ballot attempts before a voter counts as failed
	Timeout    time.Duration // HTTP request timeout
	AdminName  string        // Administrator used to create the game
	AdminPhone string
	Opponent   string // Opponent of the generated game
	LogFile    string // Log file for test output
	Verbose    bool   // Enable per-voter logging
}

// Voter is one generated participant and the ballot they end up with.
type Voter struct {
	Name       string
	Phone      string
	Companion  bool
	Afterparty model.Afterparty
	// First is the ballot cast before a revote, nil for single voters.
	First *Ballot
}

// Ballot is one submission choice.
type Ballot struct {
	Companion  bool
	Afterparty model.Afterparty
}

// Result is the outcome of one voter's run.
type Result struct {
	Voter   Voter
	BatchID string   // batch of the final committed ballot
	Stale   []string // batches superseded by the revote
	Retries int
	Err     error
}

// Stats holds run statistics.
type Stats struct {
	EventID         string
	VotersGenerated int
	BallotsCast     int
	Successful      int
	Failed          int
	Retries         int
	Rows            int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
