package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/turnout/internal/domain/attendance"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/pkg/logger"
)

// Run executes the complete load run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadtest")

	log.Info(ctx, "starting turnout load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("voters", config.Voters),
		logger.Int("revoters", config.Revoters),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
	)

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, err
	}

	// Step 2: Create the game to vote on
	eventID, err := ensureGame(ctx, client, config)
	if err != nil {
		return stats, fmt.Errorf("create game: %w", err)
	}
	stats.EventID = eventID

	// Step 3: Generate voters
	voters := generateVoters(config.Voters, config.Revoters)
	stats.VotersGenerated = len(voters)

	// Step 4: Vote concurrently
	results := castBallots(ctx, client, config, eventID, voters, stats)

	// Step 5: Read back and verify
	var summary attendance.Summary
	if err := client.Do(ctx, http.MethodGet, "/api/v1/events/"+url.PathEscape(eventID)+"/attendance", "", nil, &summary); err != nil {
		return stats, fmt.Errorf("read summary: %w", err)
	}
	stats.Rows = summary.Total

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if err := verifyResults(results, summary); err != nil {
		return stats, err
	}
	log.Info(ctx, "load test completed successfully")
	return stats, nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	if err := client.Do(ctx, http.MethodGet, "/healthz", "", nil, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// ensureGame logs in and creates a game a few days ahead. An existing game
// with the same id is reused.
func ensureGame(ctx context.Context, client *HTTPClient, config *Config) (string, error) {
	var login struct {
		SessionID string `json:"session_id"`
	}
	creds := map[string]string{"name": config.AdminName, "phone": config.AdminPhone}
	if err := client.Do(ctx, http.MethodPost, "/api/v1/admin/login", "", creds, &login); err != nil {
		return "", err
	}

	date := time.Now().AddDate(0, 0, gameLeadDays).Format(model.DateLayout)
	game := map[string]string{
		"date":          date,
		"opponent":      config.Opponent,
		"start_time":    "18:30",
		"vote_deadline": date + " 18:00",
	}
	var created model.Event
	err := client.Do(ctx, http.MethodPost, "/api/v1/admin/events", login.SessionID, game, &created)
	var se *StatusError
	switch {
	case err == nil:
		return created.ID, nil
	case errors.As(err, &se) && se.Status == http.StatusConflict:
		return model.EventID(date, config.Opponent), nil
	default:
		return "", err
	}
}

// castBallots runs voters through a worker pool.
func castBallots(ctx context.Context, client *HTTPClient, config *Config, eventID string, voters []Voter, stats *Stats) []Result {
	var (
		cast       int64
		successful int64
		failed     int64
		retries    int64
	)

	results := make([]Result, len(voters))
	indexes := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				res := runVoter(ctx, client, config, eventID, voters[i])
				results[i] = res

				atomic.AddInt64(&retries, int64(res.Retries))
				atomic.AddInt64(&cast, int64(1+len(res.Stale)))
				if res.Err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Get().Warn(ctx, "voter failed", logger.String("voter", res.Voter.Name), logger.Error(res.Err))
					continue
				}
				atomic.AddInt64(&successful, 1)
				if config.Verbose {
					logger.Get().Debug(ctx, "voter done", logger.String("voter", res.Voter.Name), logger.String("batch", res.BatchID))
				}
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range voters {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()

	wg.Wait()

	stats.BallotsCast = int(atomic.LoadInt64(&cast))
	stats.Successful = int(atomic.LoadInt64(&successful))
	stats.Failed = int(atomic.LoadInt64(&failed))
	stats.Retries = int(atomic.LoadInt64(&retries))
	return results
}

type sessionView struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	LastReceipt *struct {
		BatchID string `json:"batch_id"`
	} `json:"last_receipt"`
}

// runVoter casts the optional first ballot, then the final one, on a single
// session.
func runVoter(ctx context.Context, client *HTTPClient, config *Config, eventID string, v Voter) Result {
	res := Result{Voter: v}

	var sess sessionView
	if err := client.Do(ctx, http.MethodPost, "/api/v1/sessions", "", nil, &sess); err != nil {
		res.Err = err
		return res
	}

	ballots := []Ballot{{Companion: v.Companion, Afterparty: v.Afterparty}}
	if v.First != nil {
		ballots = append([]Ballot{*v.First}, ballots...)
	}

	for n, b := range ballots {
		if n > 0 {
			if err := client.Do(ctx, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/restart", "", nil, nil); err != nil {
				res.Err = err
				return res
			}
		}
		batch, retries, err := castWithRetry(ctx, client, config.Attempts, sess.ID, eventID, v, b)
		res.Retries += retries
		if err != nil {
			res.Err = err
			return res
		}
		if n < len(ballots)-1 {
			res.Stale = append(res.Stale, batch)
		} else {
			res.BatchID = batch
		}
	}
	return res
}

// castWithRetry walks the wizard once per attempt. Backpressure and store
// outages leave the session at event selection, so the walk restarts there.
func castWithRetry(ctx context.Context, client *HTTPClient, attempts int, sessionID, eventID string, v Voter, b Ballot) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", attempt, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
			_ = client.Do(ctx, http.MethodPost, "/api/v1/sessions/"+sessionID+"/cancel", "", nil, nil)
		}
		batch, err := castOnce(ctx, client, sessionID, eventID, v, b)
		if err == nil {
			return batch, attempt, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", attempt, err
		}
	}
	return "", attempts - 1, lastErr
}

func castOnce(ctx context.Context, client *HTTPClient, sessionID, eventID string, v Voter, b Ballot) (string, error) {
	base := "/api/v1/sessions/" + sessionID
	steps := []struct {
		path string
		body any
	}{
		{"/select", map[string]string{"event_id": eventID}},
		{"/identity", map[string]any{"name": v.Name, "phone": v.Phone, "companion": b.Companion}},
		{"/attendance", nil},
		{"/afterparty", map[string]string{"afterparty": string(b.Afterparty)}},
	}
	for _, s := range steps {
		if err := client.Do(ctx, http.MethodPost, base+s.path, "", s.body, nil); err != nil {
			return "", err
		}
	}
	var sess sessionView
	if err := client.Do(ctx, http.MethodPost, base+"/submit", "", nil, &sess); err != nil {
		return "", err
	}
	if sess.LastReceipt == nil {
		return "", fmt.Errorf("submit of %s returned no receipt", v.Name)
	}
	return sess.LastReceipt.BatchID, nil
}

func retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusConflict:
		return true
	}
	return false
}

// displayFinalStats logs the final statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, ballotsPerSecond float64
	if stats.VotersGenerated > 0 {
		successRate = float64(stats.Successful) / float64(stats.VotersGenerated) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		ballotsPerSecond = float64(stats.BallotsCast) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.String("event", stats.EventID),
		logger.Int("votersGenerated", stats.VotersGenerated),
		logger.Int("ballotsCast", stats.BallotsCast),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("retries", stats.Retries),
		logger.Int("rows", stats.Rows),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("ballotsPerSecond", ballotsPerSecond),
	)
}
