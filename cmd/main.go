package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/okian/turnout/internal/adapters/calendar"
	"github.com/okian/turnout/internal/adapters/http/api"
	"github.com/okian/turnout/internal/adapters/http/swagger"
	"github.com/okian/turnout/internal/adapters/i18n"
	"github.com/okian/turnout/internal/adapters/lock"
	"github.com/okian/turnout/internal/adapters/redisclient"
	"github.com/okian/turnout/internal/adapters/repository"
	"github.com/okian/turnout/internal/adapters/session"
	service "github.com/okian/turnout/internal/app"
	"github.com/okian/turnout/internal/config"
	"github.com/okian/turnout/internal/domain/visibility"
	"github.com/okian/turnout/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("turnout: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	application, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Close(stopCtx); err != nil {
			log.Error(stopCtx, "shutdown failed", logger.Error(err))
		}
	}()

	go startServiceMetricsUpdater(ctx, application.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           application.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// application is the wired process: the started service, its HTTP handler
// and the connections it owns.
type application struct {
	svc     *service.Service
	handler http.Handler
	redis   *redis.Client
}

// Close stops the service and releases the Redis connection.
func (a *application) Close(ctx context.Context) error {
	err := a.svc.Stop(ctx)
	if a.redis != nil {
		err = errors.Join(err, a.redis.Close())
	}
	return err
}

// wire builds every adapter named by cfg and starts the service.
func wire(ctx context.Context, cfg *config.Config) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var client *redis.Client
	if cfg.LockBackend == config.BackendRedis || cfg.SessionBackend == config.BackendRedis {
		client, err = redisclient.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.LockBackend == config.BackendRedis {
		locker = lock.NewRedisLocker(client, lock.WithTTL(cfg.LockTTL()))
	}

	var sessions session.Store
	if cfg.SessionBackend == config.BackendRedis {
		sessions = session.NewRedisStore(client, session.WithRedisTTL(cfg.SessionTTL()))
	} else {
		sessions = session.NewMemoryStore(session.WithTTL(cfg.SessionTTL()))
	}

	svc := service.New(
		service.WithLogger(logger.Named("service")),
		service.WithStore(store),
		service.WithSessionStore(sessions),
		service.WithLocker(locker),
		service.WithFilter(visibility.New(cfg.VisibilityWindow(), loc)),
		service.WithShards(cfg.WriterShards),
		service.WithQueueSize(cfg.WriterQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMaxAttempts(cfg.ReconcileMaxAttempts),
		service.WithBootstrapAdmin(cfg.BootstrapAdminName, cfg.BootstrapAdminPhone),
	)
	if err := svc.Start(ctx); err != nil {
		errs := []error{fmt.Errorf("start service: %w", err), sessions.Close(), store.Close()}
		if client != nil {
			errs = append(errs, client.Close())
		}
		return nil, errors.Join(errs...)
	}
	app := &application{svc: svc, redis: client}

	router := chi.NewRouter()
	api.NewServer(svc, svc,
		api.WithTranslator(i18n.NewTranslator(cfg.DefaultLocale)),
		api.WithCalendar(calendar.NewExporter(loc)),
		api.WithLogger(logger.Named("http")),
	).Register(ctx, router)
	swagger.Register(ctx, router)
	app.handler = router

	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.TabularStore, error) {
	if cfg.StoreBackend == config.BackendSQLite {
		store, err := repository.NewSQLiteStore(ctx, cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return repository.Instrument(store), nil
	}
	return repository.Instrument(repository.NewMemoryStore()), nil
}

// startServiceMetricsUpdater refreshes the pending-queue and session gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats(ctx)
		}
	}
}
