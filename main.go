// Package main is the entry point for the restosite server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"restosite/config"
	"restosite/logger"
)

var rootCmd = &cobra.Command{
	Use:   "restosite",
	Short: "restosite - restaurant website builder",
	Long: `restosite hosts restaurant websites built from an ordered list of page
sections. Operators edit their sections from the dashboard or through the
sync API; visitors see the rendered page on the restaurant subdomain.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.OutputPath = cfg.LogFile
	logCfg.Development = cfg.LogDev
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
