// Package main is the entry point for scholarctl, a command-line client that
// queries the configured paper sources directly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/scholar-tools-service/internal/bootstrap"
	"github.com/helixir/scholar-tools-service/internal/config"
	"github.com/helixir/scholar-tools-service/internal/observability"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

// version is set at build time via ldflags.
var version = "dev"

// registry is built from configuration before any subcommand runs.
var registry *papersources.Registry

var rootCmd = &cobra.Command{
	Use:   "scholarctl",
	Short: "Search Semantic Scholar, arXiv and CORE from the command line",
	Long: `scholarctl runs the same provider adapters as the scholar tools service
without starting a server. Configuration is read the same way: defaults,
then config.yaml, then SCHOLARTOOLS_* environment variables. API keys come
from the environment only.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		output, _ := cmd.Flags().GetString("output")
		if _, err := parseFormat(output); err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level, _ := cmd.Flags().GetString("log-level")
		logger := observability.WithComponent(observability.NewLogger(observability.LoggingConfig{
			Level:  level,
			Format: "console",
			Output: "stderr",
		}), "scholarctl")

		registry = bootstrap.NewRegistry(cfg, nil, logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", string(formatJSON), "output format: json or yaml")
	rootCmd.PersistentFlags().String("log-level", zerolog.WarnLevel.String(), "log level written to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
