package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rookery",
	Short: "Rookery - OpenAI-compatible proxy over cookie-authenticated upstreams",
	Long: `Rookery is an OpenAI-compatible reverse proxy that fronts a
cookie-authenticated upstream chat service with a rotating pool of
browser sessions.

It provides:
  - Session pool management with health classification and quarantine
  - Per-request session rotation and progressive retry backoff
  - A circuit breaker guarding a globally unhealthy upstream
  - Durable generation and token usage records in SQLite
  - Prometheus metrics and structured logging`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}
