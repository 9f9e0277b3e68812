// Package main provides the entry point for the strategy validation service.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/strategy-validator/internal/backtestclient"
	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/store"
	"github.com/yourusername/strategy-validator/internal/validation"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config
	backtests  *backtestclient.Client
	sessions   *store.SessionStore
	manager    *validation.Manager
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(runCmd, serveCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "validator",
	Short: "Adaptive strategy validation scheduler",
	Long: `Repeatedly backtests a trading strategy over adaptive historical windows
until it proves profitable, the test budget is spent, or it is stopped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if backtests != nil {
			_ = backtests.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("validator %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return config.ValidateEnvironment(cfg)
}

func setupDependencies() error {
	appLog = logger.NewLogger(cfg.App.LogLevel)
	metrics.InitRegistry()

	var err error
	backtests, err = backtestclient.New(backtestclient.FromConfig(cfg.BacktestService), appLog)
	if err != nil {
		return fmt.Errorf("failed to create backtest client: %w", err)
	}

	sessions = store.NewSessionStore(cfg.Validation.SessionRetention())
	manager = validation.NewManager(sessions, backtests, backtests, appLog)

	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"backtests":   cfg.BacktestService.URL,
		"version":     Version,
	}).Info("Validator initialized")
	return nil
}
