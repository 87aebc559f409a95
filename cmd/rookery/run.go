package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/server"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Rookery proxy server",
	Long: `Start the proxy server with the specified configuration.

The server listens on the configured address, serves the OpenAI-compatible
chat completion API, and manages the session pool in the background.

Examples:
  # Start with defaults plus ROOKERY_* environment overrides
  rookery run

  # Start with a config file
  rookery run --config /etc/rookery/rookery.yaml

  # Override the listen address
  rookery run --listen 0.0.0.0:8080

  # Validate config without starting
  rookery run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	logger.Info("starting rookery",
		"version", Version,
		"listen", cfg.Server.ListenAddress,
		"upstream", cfg.Upstream.BaseURL,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	return srv.Start(context.Background())
}
