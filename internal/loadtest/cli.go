package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/turnout/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file. If logFile is
// empty, a timestamped filename is generated. The returned closer flushes
// the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file)), logger.WithLevel(level)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`turnout load test
=================

Drives concurrent voters through the HTTP API against one generated game and
verifies that every final ballot is stored exactly once, with its companion.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -voters int
        Number of distinct voters (default 200)
  -revoters int
        Voters who vote twice, changing their ballot (default 20)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -attempts int
        Ballot attempts on backpressure before giving up (default 5)
  -timeout duration
        HTTP request timeout (default 30s)
  -admin-name, -admin-phone string
        Administrator credentials used to create the game
  -opponent string
        Opponent of the generated game (default "LOADTEST")
  -log string
        Log file (default: loadtest_TIMESTAMP.log)
  -verbose
        Log every voter
  -help
        Show this help message

Examples:
  go run ./cmd/loadtest -admin-name Kim -admin-phone 010-0000-0000
  go run ./cmd/loadtest -voters 2000 -revoters 500 -workers 64 -url http://localhost:8080
`)
}
