package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/turnout/internal/loadtest"
)

const (
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultDeadline = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		voters     = flag.Int("voters", loadtest.DefaultVoters, "Number of distinct voters")
		revoters   = flag.Int("revoters", loadtest.DefaultRevoters, "Voters who vote twice")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		attempts   = flag.Int("attempts", loadtest.DefaultAttempts, "Ballot attempts on backpressure")
		timeout    = flag.Duration("timeout", loadtest.DefaultTimeout, "HTTP request timeout")
		adminName  = flag.String("admin-name", "", "Administrator name")
		adminPhone = flag.String("admin-phone", "", "Administrator phone")
		opponent   = flag.String("opponent", loadtest.DefaultOpponent, "Opponent of the generated game")
		logFile    = flag.String("log", "", "Log file (default: loadtest_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Log every voter")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	closer, err := loadtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultDeadline)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:    *baseURL,
		Voters:     *voters,
		Revoters:   *revoters,
		Workers:    *workers,
		Attempts:   *attempts,
		Timeout:    *timeout,
		AdminName:  *adminName,
		AdminPhone: *adminPhone,
		Opponent:   *opponent,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}
	config.Normalize(runtime.NumCPU() * defaultWorkers)

	if _, err := loadtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Load test failed: " + err.Error() + "\n")
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
