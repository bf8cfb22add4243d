// Package cmd is the civicsync command line: the API server and the
// operator tasks around it.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"civicsync-engine/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "civicsync",
	Short:         "Civic issue lifecycle and engagement API",
	Long:          `Runs the civic issue API and the operator tasks around it: index setup, staff provisioning and token minting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and installs the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
