// Package config loads scheduler configuration from TOML files and
// O4O_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// Config is the root configuration for the scheduler daemon
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig configures job execution
type SchedulerConfig struct {
	ExecutionTimeoutMinutes int `mapstructure:"execution_timeout_minutes"`
}

// RetryConfig configures the failure queue retry processor
type RetryConfig struct {
	IntervalSeconds  int `mapstructure:"interval_seconds"`
	BatchSize        int `mapstructure:"batch_size"`
	RatePerMinute    int `mapstructure:"rate_per_minute"` // 0 = unlimited
	CleanupAfterDays int `mapstructure:"cleanup_after_days"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	JSON bool `mapstructure:"json"`
}

// ExecutionTimeout returns the configured per-execution timeout.
func (c SchedulerConfig) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutMinutes) * time.Minute
}

// RetryInterval returns the configured sweep interval.
func (c RetryConfig) RetryInterval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// CleanupAfter returns how long resolved and cancelled failure items
// are retained before cleanup.
func (c RetryConfig) CleanupAfter() time.Duration {
	return time.Duration(c.CleanupAfterDays) * 24 * time.Hour
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "o4o-scheduler.db")

	v.SetDefault("scheduler.execution_timeout_minutes", 15)

	v.SetDefault("retry.interval_seconds", 60)
	v.SetDefault("retry.batch_size", 10)
	v.SetDefault("retry.rate_per_minute", 0)
	v.SetDefault("retry.cleanup_after_days", 30)

	v.SetDefault("logging.json", true)
}

// Load reads configuration from defaults and O4O_-prefixed environment
// variables. A missing config file is not an error.
func Load() (*Config, error) {
	return LoadWithViper(newViper())
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetEnvPrefix("O4O")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	return v
}
