/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the micro-blogging ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.yml + environment)
  2. Open the journal selected by STORE_DRIVER
  3. Build the ledger and replay the journal
  4. Wire notifications (in-process bus, Redis when REDIS_URL is set)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Directory containing config.yml (default: .)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the stats sampler, close the bus and the journal
  4. Exit

EXAMPLES:
  # Run with the default SQLite journal
  ./server

  # Run against Postgres with Redis fan-out
  STORE_DRIVER=postgres DATABASE_URL=postgres://... REDIS_URL=localhost:6379 ./server

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - ledger/ledger.go: Operation pipeline
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/microledger/api"
	"github.com/warp/microledger/config"
	"github.com/warp/microledger/ledger"
	"github.com/warp/microledger/ledger/store"
	"github.com/warp/microledger/notify"
	"github.com/warp/microledger/observability"
	"github.com/warp/microledger/store/postgres"
	"github.com/warp/microledger/store/sqlite"
)

func main() {
	configDir := flag.String("config", ".", "Directory containing config.yml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger.Logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	// Initialize journal
	journal, closeJournal, err := openJournal(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}
	defer closeJournal()

	// Notifications
	bus := notify.NewBus(notify.DefaultBuffer)
	defer bus.Close()
	publishers := notify.Multi{bus}
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, events stay in-process", "error", err)
		} else {
			publishers = append(publishers, notify.NewRedis(rdb, cfg.RedisChannel))
		}
	}

	// Ledger
	// ticks must be stable across restarts for replayed edit deadlines
	genesis := cfg.GenesisTime()
	if genesis.IsZero() {
		genesis = time.Now()
		logger.Warn("GENESIS is empty; ticks restart from zero on every boot")
	}
	metrics := observability.NewMetrics()
	l := ledger.New(ledger.Options{
		Clock:      ledger.NewWallClock(genesis, cfg.TickDur()),
		EditWindow: ledger.EditWindowTicks(cfg.EditWindowDur(), cfg.TickDur()),
		Journal:    journal,
		Publisher:  publishers,
		Recorder:   metrics,
		Logger:     logger.Component("ledger"),
	})
	if err := l.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore ledger: %w", err)
	}

	sampler := api.NewStatsSampler(l, metrics, logger.Logger)
	sampler.Start()
	defer sampler.Stop()

	// Create router
	router := api.NewRouter(api.NewHandler(l, logger.Component("api")), api.RouterOptions{
		AllowedOrigins: cfg.Origins(),
		Auth:           &api.Authenticator{Secret: []byte(cfg.JWTSecret)},
		Metrics:        metrics.Handler(),
		Scenarios:      !cfg.IsProduction(),
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", server.Addr, "driver", cfg.StoreDriver, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openJournal returns the journal selected by STORE_DRIVER and its closer.
func openJournal(ctx context.Context, cfg *config.Config) (ledger.Journal, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close journal", "error", err)
		}
	}
}
