// Command organograma serves the personnel directory and org chart, runs
// database migrations and lays out record files offline.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"organograma/internal/platform/config"
	"organograma/internal/platform/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "organograma",
		Short:        "Military personnel directory and org chart",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newLayoutCmd())
	return cmd
}

// loadConfig reads the environment and builds the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)
	return cfg, log, nil
}
