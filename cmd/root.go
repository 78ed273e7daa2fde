// Package cmd contains the tanuki command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanuki0/tanuki/internal/config"
	"github.com/tanuki0/tanuki/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "tanuki",
	Short: "Tanuki - AI assistant for your structured data",
	Long: `Tanuki indexes the structure of your databases into searchable
knowledge bases and answers questions about them in natural language.

Point it at MySQL, PostgreSQL or MongoDB sources via datasources.yaml,
run "tanuki index" to build the knowledge bases, then "tanuki serve"
to expose the search, query and chat API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and builds the logger from it.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	return cfg, logger, nil
}
