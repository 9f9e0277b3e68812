package validation

import (
	"fmt"
	"time"

	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/models"
)

const (
	DefaultPacingInterval  = 60 * time.Second
	DefaultMaxTotalTests   = 20
	DefaultWindowDays      = 90
	DefaultRunTimeout      = 300 * time.Second
	DefaultPollInterval    = time.Second
	DefaultHistoryCapacity = 50
)

// DefaultSessionConfig returns the stock session configuration for a strategy.
func DefaultSessionConfig(strategyID string) models.SessionConfig {
	return models.SessionConfig{
		StrategyID:          strategyID,
		PacingInterval:      DefaultPacingInterval,
		MaxTotalTests:       DefaultMaxTotalTests,
		DefaultWindowDays:   DefaultWindowDays,
		AutoAdjust:          true,
		StopOnProfitability: true,
		RunTimeout:          DefaultRunTimeout,
		PollInterval:        DefaultPollInterval,
		HistoryCapacity:     DefaultHistoryCapacity,
		Criteria:            models.DefaultCriteria(),
	}
}

// FromConfig converts the application configuration into a session config.
func FromConfig(cfg *config.Config) (models.SessionConfig, error) {
	sc := models.SessionConfig{
		StrategyID:          cfg.Validation.StrategyID,
		PacingInterval:      cfg.Validation.PacingInterval(),
		MaxTotalTests:       cfg.Validation.MaxTotalTests,
		DefaultWindowDays:   cfg.Validation.DefaultWindowDays,
		AutoAdjust:          cfg.Validation.AutoAdjust,
		StopOnProfitability: cfg.Validation.StopOnProfitability,
		RunTimeout:          cfg.Validation.RunTimeout(),
		PollInterval:        cfg.Validation.PollInterval(),
		HistoryCapacity:     cfg.Validation.HistoryCapacity,
		Criteria: models.ProfitabilityCriteria{
			MinSharpeRatio:       cfg.Criteria.MinSharpeRatio,
			MinWinRate:           cfg.Criteria.MinWinRate,
			MinTotalReturn:       cfg.Criteria.MinTotalReturn,
			MaxDrawdownThreshold: cfg.Criteria.MaxDrawdownThreshold,
			MinConsecutivePasses: cfg.Criteria.MinConsecutivePasses,
			MinTotalRuns:         cfg.Criteria.MinTotalRuns,
		},
	}

	sc = withDefaults(sc)
	if err := validateConfig(sc); err != nil {
		return models.SessionConfig{}, err
	}
	return sc, nil
}

// withDefaults fills unset timing and capacity fields.
func withDefaults(cfg models.SessionConfig) models.SessionConfig {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultHistoryCapacity
	}
	return cfg
}

func validateConfig(cfg models.SessionConfig) error {
	if cfg.StrategyID == "" {
		return fmt.Errorf("%w: strategy id is required", ErrInvalidConfig)
	}
	if cfg.MaxTotalTests < 1 {
		return fmt.Errorf("%w: max_total_tests must be at least 1", ErrInvalidConfig)
	}
	if cfg.DefaultWindowDays < 1 {
		return fmt.Errorf("%w: default_window_days must be at least 1", ErrInvalidConfig)
	}
	if cfg.PacingInterval < 0 {
		return fmt.Errorf("%w: pacing interval must not be negative", ErrInvalidConfig)
	}
	if err := cfg.Criteria.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Criteria.MinTotalRuns > cfg.HistoryCapacity {
		return fmt.Errorf("%w: min_total_runs (%d) exceeds history capacity (%d)",
			ErrInvalidConfig, cfg.Criteria.MinTotalRuns, cfg.HistoryCapacity)
	}
	return nil
}
