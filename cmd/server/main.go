/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the LedgerFlow staging server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment / .env
  2. Set up structured logging
  3. Initialize SQLite store (migrations run automatically)
  4. Build the currency converter and its background refresher
  5. Wire pipeline, manager, and executor into the API handler
  6. Start server with graceful shutdown

CONFIGURATION (environment variables, all optional):
  PORT                   HTTP server port (default: 8080)
  DATABASE_PATH          SQLite database path (default: ./ledgerflow.db)
                         Use ":memory:" for an in-memory database
  LOG_LEVEL              debug | info | warn | error (default: info)
  BASE_CURRENCY          canonical accounting currency (default: EUR)
  ENABLED_CURRENCIES     comma-separated list (default: USD,GBP)
  RATE_SERVICE_URL       remote rates API; empty runs without remote rates
  RATE_REFRESH_INTERVAL  rate table cadence (default: 30m)
  RATE_SNAPSHOT_TTL      pair snapshot TTL (default: 3m)
  RATE_LOOKUP_TIMEOUT    remote lookup bound (default: 5s)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the rate refresher, close the database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ledgerflow/api"
	"github.com/warp/ledgerflow/config"
	"github.com/warp/ledgerflow/currency"
	"github.com/warp/ledgerflow/logging"
	"github.com/warp/ledgerflow/staging"
	"github.com/warp/ledgerflow/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize database", "path", cfg.DatabasePath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// Rate service: remote when configured, otherwise the converter runs on
	// its identity fallback (logged as degraded).
	var rateSvc currency.RateService = noRates{}
	if cfg.RateServiceURL != "" {
		rateSvc = currency.NewHTTPRateService(cfg.RateServiceURL, nil)
	}

	converter := currency.New(rateSvc, currency.Options{
		BaseCurrency:    cfg.BaseCurrency,
		Currencies:      cfg.EnabledCurrencies,
		RefreshInterval: cfg.RateRefresh,
		SnapshotTTL:     cfg.RateSnapshotTTL,
		LookupTimeout:   cfg.RateLookupTimeout,
		Logger:          logger,
	})

	if cfg.RateServiceURL != "" {
		refresher := currency.NewRefresher(converter, cfg.RateRefresh, logger)
		refresher.Start()
		defer refresher.Stop()
	}

	handler := &api.Handler{
		Records:   store,
		Reference: store,
		Pipeline: staging.NewPipeline(store, staging.PipelineConfig{
			BaseCurrency:      cfg.BaseCurrency,
			EnabledCurrencies: cfg.EnabledCurrencies,
		}),
		Manager:   staging.NewManager(store),
		Executor:  staging.NewExecutor(store, converter),
		Converter: converter,
		Logger:    logger,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"port", cfg.Port, "db", cfg.DatabasePath, "base_currency", cfg.BaseCurrency)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// noRates is the rate service used when no remote endpoint is configured:
// every lookup fails, so the converter settles on its identity fallback.
type noRates struct{}

func (noRates) GetRates(context.Context, string, []string) (map[string]decimal.Decimal, error) {
	return nil, errNoRateService
}

func (noRates) PairRate(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.Zero, errNoRateService
}

var errNoRateService = errors.New("no rate service configured")
