// Package main provides the CLI for jet-bridge.
// jet-bridge reflects live relational databases into table descriptors and
// serves filtered records and row navigation over HTTP.
//
// Usage:
//
//	jetbridge reflect [name...]     # Reflect connections and print their tables
//	jetbridge status                # Show pending and active connections
//	jetbridge serve                 # Reflect connections and serve the HTTP API
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tayjaybabee/jet-bridge/internal/cli"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	databaseURL string
	configFile  string
	driver      string
	overlayFile string
	verbose     bool
)

// logger is configured before any command runs.
var logger = slog.Default()

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jetbridge",
		Short:         "Reflect relational databases and query them over HTTP",
		Long:          `jet-bridge discovers the tables, columns and relationships of live databases and serves filtered records and sibling navigation through a small HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	cmd.PersistentFlags().StringVarP(&databaseURL, "database-url", "d", "", "Database connection URL for the default connection")
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "jetbridge.yaml", "Path to config file")
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "Database driver: pgx, pq or sqlite")
	cmd.PersistentFlags().StringVar(&overlayFile, "overlay", "", "Path to overlay file")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(
		reflectCmd(),
		statusCmd(),
		serveCmd(),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprint(os.Stderr, cli.FormatError(err))
		printHints(err)
		stop()
		os.Exit(1)
	}
}
