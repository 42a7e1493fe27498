package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/sellerdesk/seller-backoffice/internal/config"
	"github.com/sellerdesk/seller-backoffice/internal/database"
	"github.com/sellerdesk/seller-backoffice/internal/migrate"
	"github.com/sellerdesk/seller-backoffice/internal/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		dirs       = flag.String("dir", "", "Migrations directory candidates, separated like PATH (overrides config)")
		ordering   = flag.String("ordering", "", "Apply order: filename or version (overrides config)")
		status     = flag.Bool("status", false, "Show migration status without applying anything")
		asJSON     = flag.Bool("json", false, "Print -status output as JSON")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(migrate.ExitFailure)
	}
	if *dirs != "" {
		cfg.Migrations.Directories = filepath.SplitList(*dirs)
	}
	if *ordering != "" {
		cfg.Migrations.Ordering = *ordering
	}

	logger := utils.SetupGlobalLogger(utils.LoggerConfig{
		Level:      cfg.Server.LogLevel,
		Pretty:     cfg.Server.Debug,
		CallerInfo: cfg.Server.Debug,
		LogFile:    os.Getenv("LOG_FILE"),
		Service:    "seller-migrate",
	})

	// Halt between files on SIGINT/SIGTERM; the file in flight still finishes
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, *status, *asJSON, logger))
}

func run(ctx context.Context, cfg *config.Config, statusOnly, asJSON bool, logger zerolog.Logger) int {
	// A standalone run only needs a small pool of its own
	dbConfig := cfg.Database
	dbConfig.MaxConnections = cfg.Migrations.MaxConnections
	if dbConfig.MaxIdleConns > dbConfig.MaxConnections {
		dbConfig.MaxIdleConns = dbConfig.MaxConnections
	}

	db := database.NewDatabase(dbConfig, logger)
	if err := db.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return migrate.ExitFailure
	}

	runner, err := migrate.NewRunner(db.DB(), migrate.Options{
		Directories: cfg.Migrations.Directories,
		Table:       cfg.Migrations.Table,
		Ordering:    migrate.Ordering(cfg.Migrations.Ordering),
	}, logger)
	if err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "Invalid migration settings: %v\n", err)
		return migrate.ExitFailure
	}

	if statusOnly {
		defer db.Close()
		return printStatus(ctx, runner, os.Stdout, asJSON)
	}

	return migrate.RunStandalone(ctx, runner, db, os.Stderr)
}

func printStatus(ctx context.Context, runner *migrate.Runner, out io.Writer, asJSON bool) int {
	status, err := runner.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read migration status: %v\n", err)
		return migrate.ExitFailure
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode status: %v\n", err)
			return migrate.ExitFailure
		}
		return migrate.ExitOK
	}

	fmt.Fprintf(out, "directory: %s\ntable:     %s\nordering:  %s\n\n", status.Directory, status.Table, status.Ordering)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	rows := append(append([]migrate.FileStatus{}, status.Files...), status.Orphaned...)
	for _, f := range rows {
		version := "-"
		if f.Version > 0 {
			version = fmt.Sprintf("%d", f.Version)
		}
		appliedAt := f.Reason
		if f.AppliedAt != nil {
			appliedAt = f.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", version, f.Name, f.Status, appliedAt)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d applied, %d pending, %d invalid, %d orphaned\n",
		status.Applied, status.Pending, status.Invalid, len(status.Orphaned))
	return migrate.ExitOK
}
