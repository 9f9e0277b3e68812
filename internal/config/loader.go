package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "config/config.yaml"
	envPrefix         = "VALIDATOR"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults registers every key so environment overrides work without a file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "strategy-validator")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("validation.strategy_id", "default")
	v.SetDefault("validation.pacing_interval_seconds", 60)
	v.SetDefault("validation.max_total_tests", 20)
	v.SetDefault("validation.default_window_days", 90)
	v.SetDefault("validation.auto_adjust", true)
	v.SetDefault("validation.stop_on_profitability", true)
	v.SetDefault("validation.run_timeout_seconds", 300)
	v.SetDefault("validation.poll_interval_ms", 1000)
	v.SetDefault("validation.history_capacity", 50)
	v.SetDefault("validation.session_retention_minutes", 60)

	v.SetDefault("criteria.min_sharpe_ratio", 1.5)
	v.SetDefault("criteria.min_win_rate", 0.55)
	v.SetDefault("criteria.min_total_return", 0.10)
	v.SetDefault("criteria.max_drawdown_threshold", 0.20)
	v.SetDefault("criteria.min_consecutive_passes", 3)
	v.SetDefault("criteria.min_total_runs", 5)

	v.SetDefault("backtest_service.url", "http://localhost:8000")
	v.SetDefault("backtest_service.api_key", "")
	v.SetDefault("backtest_service.timeout_seconds", 30)
	v.SetDefault("backtest_service.retry_attempts", 3)
	v.SetDefault("backtest_service.requests_per_second", 5)
	v.SetDefault("backtest_service.burst", 5)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("revalidation.enabled", false)
	v.SetDefault("revalidation.schedule", "0 2 * * *")

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.region", "us-east-1")
	v.SetDefault("secrets.secret_name", "")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}
