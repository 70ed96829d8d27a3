/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the penalty engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and LOG_LEVEL
  2. Initialize SQLite store
  3. Load the interest-rate table (stored table, else the rates file)
  4. Connect the external ledger client
  5. Wire the calculation service, handler, router, and nightly sweep
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port           HTTP server port (default: 8080)
  -db             SQLite database path (default: penalty.db)
                  Use ":memory:" for an in-memory database
  -rates          JSON rate table file (default: rates.json)
  -ledger-url     Base URL of the external ledger service
  -ledger-token   Bearer token for the external ledger
  -sweep          Cron schedule for the nightly penalty sweep

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections, drain requests (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/penalty.db" -rates="./rates.json" \
           -ledger-url="https://ledger.internal" -ledger-token="$TOKEN"

ENVIRONMENT:
  LOG_LEVEL  logrus level (debug, info, warn, error; default info)

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/warp/penalty-engine/api"
	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/factory"
	"github.com/warp/penalty-engine/ledger"
	"github.com/warp/penalty-engine/metrics"
	"github.com/warp/penalty-engine/penalty"
	"github.com/warp/penalty-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "penalty.db", "SQLite database path")
	ratesPath := flag.String("rates", "rates.json", "JSON rate table file")
	ledgerURL := flag.String("ledger-url", "http://localhost:9090", "external ledger base URL")
	ledgerToken := flag.String("ledger-token", "", "external ledger bearer token")
	sweepSchedule := flag.String("sweep", api.DefaultSweepSchedule, "cron schedule for the penalty sweep")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Rate table: the stored table wins; the file seeds an empty database.
	rates, err := loadRates(store, *ratesPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load rate table")
	}
	registry := engine.NewRegistry(rates)

	// External ledger
	client, err := ledger.NewClient(*ledgerURL, *ledgerToken)
	if err != nil {
		log.WithError(err).Fatal("failed to configure ledger client")
	}
	mirror := ledger.NewMirrorService(client, store)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Calculation service
	service := penalty.NewCalculationService(store, mirror, client, registry, log)
	service.Metrics = metrics.New(reg)

	// Handler and router
	handler := api.NewHandler(store, service, registry, log)
	handler.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	router := api.NewRouter(handler)

	// Nightly sweep
	sweeper := api.NewSweeper(store, service, log)
	sweeper.Schedule = *sweepSchedule
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Fatal("failed to start penalty sweep")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", *port).Info("penalty engine starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

// loadRates prefers the table already persisted in the store and falls back
// to the startup rates file, persisting what it loaded.
func loadRates(store *sqlite.Store, path string, log *logrus.Logger) ([]engine.RatePeriod, error) {
	ctx := context.Background()

	stored, err := store.ListRatePeriods(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		log.WithField("periods", len(stored)).Info("rate table loaded from store")
		return stored, nil
	}

	loaded, err := factory.LoadRates(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WithField("path", path).Warn("no rate table file, late-submission penalties unavailable")
			return nil, nil
		}
		return nil, err
	}
	if err := store.ReplaceRatePeriods(ctx, loaded); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"path": path, "periods": len(loaded)}).Info("rate table loaded from file")
	return loaded, nil
}
