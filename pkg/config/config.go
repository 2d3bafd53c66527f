// Package config loads the ShiftSnap configuration from file, environment
// and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/PantaKoda/shiftsnap/pkg/api"
	blobs3 "github.com/PantaKoda/shiftsnap/pkg/blob/s3"
	"github.com/PantaKoda/shiftsnap/pkg/dispatch"
	"github.com/PantaKoda/shiftsnap/pkg/ingest/telegram"
	"github.com/PantaKoda/shiftsnap/pkg/store/postgres"
)

// Config represents the ShiftSnap service configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SHIFTSNAP_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the Postgres capture store. An empty URL disables
	// the capture core; only the health surface runs.
	Database postgres.Config `mapstructure:"database" yaml:"database"`

	// Metrics controls Prometheus metrics collection. When disabled no
	// collectors are registered and /metrics is not served.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the operational HTTP server.
	API api.Config `mapstructure:"api" yaml:"api"`

	// Telegram configures the chat transport. An empty token disables it.
	Telegram telegram.Config `mapstructure:"telegram" yaml:"telegram"`

	// Blob configures the S3 screenshot store. Required when the Telegram
	// transport is enabled.
	Blob blobs3.Config `mapstructure:"blob" yaml:"blob"`

	// Dispatchers configures the background pollers.
	Dispatchers DispatchersConfig `mapstructure:"dispatchers" yaml:"dispatchers"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing. When enabled,
// trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	// Default: false (opt-in)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection.
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures Prometheus metrics collection. The scrape
// endpoint is served by the API server; there is no separate listener.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DispatchersConfig groups the background poller configurations.
type DispatchersConfig struct {
	// Sessions configures the closed-session claim poller.
	Sessions dispatch.SessionDispatcherConfig `mapstructure:"sessions" yaml:"sessions"`

	// Notifications configures the pending-notification delivery poller.
	Notifications dispatch.NotificationDispatcherConfig `mapstructure:"notifications" yaml:"notifications"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case the default location
// ($XDG_CONFIG_HOME/shiftsnap/config.yaml) is searched; a missing file is
// not an error, the service runs on environment variables and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the given path in YAML form.
// Permissions are restricted because the file carries the bot token and
// database credentials.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables, config file lookup, and the
// defaults that make env-only operation work. Registering defaults also
// binds the keys for AutomaticEnv, so SHIFTSNAP_DATABASE_URL works without
// any config file present.
func setupViper(v *viper.Viper, configPath string) {
	// Example: SHIFTSNAP_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("SHIFTSNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults for values whose zero value is not the default. Everything
	// else is filled by ApplyDefaults after unmarshalling.
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("dispatchers.sessions.enabled", true)
	v.SetDefault("dispatchers.notifications.enabled", true)

	// Bind the secret-bearing keys explicitly so they resolve from the
	// environment without appearing in any config file.
	v.SetDefault("database.url", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.access_key_id", "")
	v.SetDefault("blob.secret_access_key", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is acceptable; other read errors are not.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configDecodeHooks returns the decode hooks for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "shiftsnap")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "shiftsnap")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
