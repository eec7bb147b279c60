package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/scan-insights/")
	v.AddConfigPath("$HOME/.scan-insights")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("SCAN_INSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Insights policy defaults. These are tunable policy choices, not
	// fixed laws; deployments adjust them here.
	v.SetDefault("insights.trend_window_days", 30)
	v.SetDefault("insights.high_risk_ratio", 0.5)
	v.SetDefault("insights.medium_risk_ratio", 0.2)
	v.SetDefault("insights.spike_percent", 30)
	v.SetDefault("insights.weekly_activity_limit", 10)

	// Engine defaults
	v.SetDefault("engine.resync_interval", "10m")
	v.SetDefault("engine.fetch_timeout", "30s")

	// Dismissal store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite_path", "/data/insights.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/scan_insights")

	// History source defaults
	v.SetDefault("history.type", "mysql")
	v.SetDefault("history.mysql_dsn", "user:password@tcp(localhost:3306)/scan_history")
	v.SetDefault("history.poll_frequency", "30s")

	// Server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:8080")

	// Notifier defaults
	v.SetDefault("notifier.enabled", false)
	v.SetDefault("notifier.smtp_address", "localhost:587")
	v.SetDefault("notifier.username", "")
	v.SetDefault("notifier.password", "")
	v.SetDefault("notifier.from", "insights@localhost")
	v.SetDefault("notifier.to", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
