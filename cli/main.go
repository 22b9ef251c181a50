package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Octogonapus/GalaxyBenchmark/config"
	"github.com/Octogonapus/GalaxyBenchmark/observability"
	"github.com/Octogonapus/GalaxyBenchmark/store"
)

var (
	settingsFile string
	logLevel     string
	settings     *config.Settings
	metrics      = observability.NewMetrics()
)

var rootCmd = &cobra.Command{
	Use:           "abm",
	Short:         "Benchmark Galaxy workflows across clouds and job configurations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		settings, err = config.LoadSettings(settingsFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			settings.Log.Level = logLevel
		}
		logger, err := observability.NewLogger(settings.Log.Level, settings.Log.Format, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "config", "", "Settings file (default ./abm.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
}

// openStore opens the invocation and metrics stores. It runs before any remote call so that an unusable
// directory aborts early.
func openStore() (*store.Store, error) {
	return store.Open(settings.InvocationsDir, settings.MetricsDir)
}

func writeMetrics() {
	if err := metrics.WriteTextfile(settings.MetricsTextfile); err != nil {
		slog.Error("writing metrics textfile failed", slog.String("path", settings.MetricsTextfile), slog.String("error", err.Error()))
	}
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
