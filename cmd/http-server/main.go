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

	"github.com/rs/zerolog"
	"github.com/sellerdesk/seller-backoffice/internal/api"
	"github.com/sellerdesk/seller-backoffice/internal/config"
	"github.com/sellerdesk/seller-backoffice/internal/database"
	"github.com/sellerdesk/seller-backoffice/internal/metrics"
	"github.com/sellerdesk/seller-backoffice/internal/migrate"
	"github.com/sellerdesk/seller-backoffice/internal/utils"

	// Import swagger docs
	_ "github.com/sellerdesk/seller-backoffice/docs"
)

const metricsNamespace = "seller"

func main() {
	// Parse command line flags
	var (
		configPath     string
		skipMigrations bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&skipMigrations, "skip-migrations", false, "Skip the startup migration run")
	flag.Parse()

	cfg, err := loadConfiguration(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)
	logger.Info().
		Str("version", "1.0.0").
		Int("port", cfg.HTTP.Port).
		Str("database_host", cfg.Database.Host).
		Str("database_name", cfg.Database.DBName).
		Msg("Starting seller back-office HTTP server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// The host owns the pool; the startup migration run only borrows it
	db, err := connectToDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}()

	m := metrics.NewMetrics(metricsNamespace)
	m.RegisterDBStats(metricsNamespace, db.Stats)

	runner, err := migrate.NewRunner(db.DB(), migrate.Options{
		Directories: cfg.Migrations.Directories,
		Table:       cfg.Migrations.Table,
		Ordering:    migrate.Ordering(cfg.Migrations.Ordering),
		Recorder:    m,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create migration runner")
	}

	server, err := api.NewServer(cfg, db, runner, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	if skipMigrations || cfg.Migrations.Skip {
		logger.Warn().Msg("Skipping startup migrations as requested")
	} else if err := runStartupMigrations(ctx, runner, server, cfg, logger); err != nil {
		// os.Exit skips deferred calls
		logger.Error().Err(err).Msg("Startup migrations failed, aborting")
		db.Close()
		os.Exit(1)
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErrChan:
		logger.Error().Err(err).Msg("HTTP server error")
	}

	logger.Info().Msg("Starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to gracefully shutdown HTTP server")
	}

	logger.Info().Msg("Shutdown complete")
}

// runStartupMigrations applies pending migrations before serving. With
// fail_on_error disabled a failed run is reported on /health instead.
func runStartupMigrations(ctx context.Context, runner *migrate.Runner, server *api.Server, cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Strs("directories", cfg.Migrations.Directories).Msg("Running startup migrations")

	result, err := migrate.RunEmbedded(ctx, runner)
	if err != nil {
		if cfg.Migrations.FailOnError {
			return err
		}
		logger.Warn().Err(err).Msg("Continuing without a complete schema")
		server.SetStartupError(err)
		return nil
	}

	if result != nil {
		logger.Info().
			Int("applied", result.Applied).
			Int("skipped", result.Skipped).
			Msg("Startup migrations completed")
	}
	return nil
}

// loadConfiguration loads configuration from file or environment
func loadConfiguration(configPath string) (*config.Config, error) {
	cfg := config.LoadConfigOrDefault(configPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupLogging configures the logger based on configuration
func setupLogging(cfg *config.Config) zerolog.Logger {
	// Log to stderr for systemd unless LOG_FILE is set
	return utils.SetupGlobalLogger(utils.LoggerConfig{
		Level:      cfg.Server.LogLevel,
		Pretty:     cfg.Server.Debug,
		CallerInfo: cfg.Server.Debug,
		LogFile:    os.Getenv("LOG_FILE"),
		Service:    "seller-http",
	})
}

// connectToDatabase establishes database connection with retry logic
func connectToDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*database.Database, error) {
	logger.Info().Msg("Connecting to database")

	db := database.NewDatabase(cfg.Database, logger)
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Health(healthCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	logger.Info().Msg("Database connection established")
	return db, nil
}
