// Package config provides configuration management for the strategy validator.
package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App             AppConfig             `mapstructure:"app" validate:"required"`
	Validation      ValidationConfig      `mapstructure:"validation" validate:"required"`
	Criteria        CriteriaConfig        `mapstructure:"criteria" validate:"required"`
	BacktestService BacktestServiceConfig `mapstructure:"backtest_service" validate:"required"`
	Server          ServerConfig          `mapstructure:"server" validate:"required"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
	Revalidation    RevalidationConfig    `mapstructure:"revalidation"`
	Secrets         SecretsConfig         `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// ValidationConfig holds the per-session scheduling options
type ValidationConfig struct {
	StrategyID              string `mapstructure:"strategy_id" validate:"required"`
	PacingIntervalSeconds   int    `mapstructure:"pacing_interval_seconds" validate:"gte=0"`
	MaxTotalTests           int    `mapstructure:"max_total_tests" validate:"required,gt=0"`
	DefaultWindowDays       int    `mapstructure:"default_window_days" validate:"required,gt=0"`
	AutoAdjust              bool   `mapstructure:"auto_adjust"`
	StopOnProfitability     bool   `mapstructure:"stop_on_profitability"`
	RunTimeoutSeconds       int    `mapstructure:"run_timeout_seconds" validate:"required,gt=0"`
	PollIntervalMs          int    `mapstructure:"poll_interval_ms" validate:"required,gt=0"`
	HistoryCapacity         int    `mapstructure:"history_capacity" validate:"required,gt=0"`
	SessionRetentionMinutes int    `mapstructure:"session_retention_minutes" validate:"required,gt=0"`
}

// CriteriaConfig holds the profitability rubric
type CriteriaConfig struct {
	MinSharpeRatio       float64 `mapstructure:"min_sharpe_ratio" validate:"gte=0"`
	MinWinRate           float64 `mapstructure:"min_win_rate" validate:"gte=0,lte=1"`
	MinTotalReturn       float64 `mapstructure:"min_total_return" validate:"gte=0"`
	MaxDrawdownThreshold float64 `mapstructure:"max_drawdown_threshold" validate:"gte=0"`
	MinConsecutivePasses int     `mapstructure:"min_consecutive_passes" validate:"required,gt=0"`
	MinTotalRuns         int     `mapstructure:"min_total_runs" validate:"required,gt=0"`
}

// BacktestServiceConfig represents the external backtest execution service
type BacktestServiceConfig struct {
	URL               string  `mapstructure:"url" validate:"required,url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"required,gt=0"`
	Burst             int     `mapstructure:"burst" validate:"required,gt=0"`
}

// ServerConfig represents the HTTP control surface
type ServerConfig struct {
	Address             string `mapstructure:"address" validate:"required"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// RevalidationConfig schedules periodic fresh validation sessions
type RevalidationConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"omitempty,cron"`
}

// SecretsConfig points at an AWS Secrets Manager secret overlaid on load
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// PacingInterval returns the delay between queuing and submitting a run
func (v ValidationConfig) PacingInterval() time.Duration {
	return time.Duration(v.PacingIntervalSeconds) * time.Second
}

// RunTimeout returns the maximum wait for a single run
func (v ValidationConfig) RunTimeout() time.Duration {
	return time.Duration(v.RunTimeoutSeconds) * time.Second
}

// PollInterval returns the cadence of backtest status polls
func (v ValidationConfig) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalMs) * time.Millisecond
}

// SessionRetention returns how long finished sessions stay queryable
func (v ValidationConfig) SessionRetention() time.Duration {
	return time.Duration(v.SessionRetentionMinutes) * time.Minute
}

// Timeout returns the per-request HTTP timeout
func (b BacktestServiceConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}
