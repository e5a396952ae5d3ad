/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rent engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load config.toml / RENT_* environment
  3. Open the payment store (SQLite or PostgreSQL) and apply the schema
  4. Register metrics, create the API handler and router
  5. Start the overdue monitor
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to config.toml (default: search . and /etc/rent-engine)
  -port    HTTP server port, overrides app.port
  -db      SQLite database path, overrides database.path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the overdue monitor
  2. Stop accepting new connections
  3. Wait for active requests to complete (http.shutdown_timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/rent.db"

  # Run against PostgreSQL
  RENT_DATABASE_DRIVER=postgres RENT_DATABASE_DSN=postgres://... ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
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

	"go.uber.org/zap"

	"github.com/warp/rent-engine/api"
	"github.com/warp/rent-engine/config"
	"github.com/warp/rent-engine/logger"
	"github.com/warp/rent-engine/metrics"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store"
	"github.com/warp/rent-engine/store/postgres"
	"github.com/warp/rent-engine/store/sqldb"
	"github.com/warp/rent-engine/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config.toml")
	port := flag.String("port", "", "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.App.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics.Init(st.DB(), log)

	opts := api.Options{Logger: log, Version: version}
	if cfg.Invoice.Numbering == config.NumberingLegacy {
		opts.Numberer = rent.NewLegacyNumberer(time.Now().UnixNano())
	}
	handler := api.NewHandler(st, opts)

	monitor := api.NewOverdueMonitor(handler, cfg.Monitor.Interval)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.HTTP.CORSAllowOrigins,
		Monitor:        monitor,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	if cfg.Monitor.Enabled {
		monitor.Start()
		defer monitor.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.App.Env),
			zap.String("store", st.Dialect().Name()),
			zap.String("version", version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqldb.Store, error) {
	opts := []sqldb.Option{
		sqldb.WithLogger(log),
		sqldb.WithRetry(store.RetryPolicy{
			Attempts:        cfg.Store.RetryAttempts,
			InitialInterval: cfg.Store.RetryInitialInterval,
			MaxInterval:     cfg.Store.RetryMaxInterval,
		}),
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.Database.DSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		return st, nil
	default:
		st, err := sqlite.New(cfg.Database.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite store %s: %w", cfg.Database.Path, err)
		}
		return st, nil
	}
}
