// Package config loads service configuration from defaults, an optional
// config file (.env or YAML) and environment variables, in that priority
// order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func getConfigLocations() []string {
	return []string{
		".env",
		".ferriqa.yaml",
		"config/ferriqa.yaml",
		"config/ferriqa/.env",

		// Container-friendly absolute paths
		"/config/ferriqa.yaml",
		"/config/ferriqa/.env",
	}
}

type Config struct {
	// API
	Port    int    `yaml:"port" env:"PORT"`
	GinMode string `yaml:"gin_mode" env:"GIN_MODE"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogPretty bool   `yaml:"log_pretty" env:"LOG_PRETTY"`

	// Storage. Empty PostgresURL selects the in-memory stores, which do not
	// survive a restart; acceptable for local development only.
	PostgresURL string `yaml:"postgres_url" env:"POSTGRES_URL"`

	// Delivery
	MaxConcurrentDeliveries int `yaml:"max_concurrent_deliveries" env:"MAX_CONCURRENT_DELIVERIES"`
	DeliveryTimeoutSeconds  int `yaml:"delivery_timeout_seconds" env:"DELIVERY_TIMEOUT_SECONDS"`
	QueueTickIntervalMS     int `yaml:"queue_tick_interval_ms" env:"QUEUE_TICK_INTERVAL_MS"`

	// Retry
	RetryMaxAttempts       int `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	RetryInitialDelayMS    int `yaml:"retry_initial_delay_ms" env:"RETRY_INITIAL_DELAY_MS"`
	RetryBackoffMultiplier int `yaml:"retry_backoff_multiplier" env:"RETRY_BACKOFF_MULTIPLIER"`

	// History retention. RetentionDays 0 disables the retention worker.
	RetentionDays          int `yaml:"retention_days" env:"RETENTION_DAYS"`
	RetentionIntervalHours int `yaml:"retention_interval_hours" env:"RETENTION_INTERVAL_HOURS"`
}

func (c *Config) initDefaults() {
	c.Port = 8080
	c.LogLevel = "info"
	c.MaxConcurrentDeliveries = 10
	c.DeliveryTimeoutSeconds = 30
	c.QueueTickIntervalMS = 1000
	c.RetryMaxAttempts = 5
	c.RetryInitialDelayMS = 1000
	c.RetryBackoffMultiplier = 2
	c.RetentionDays = 30
	c.RetentionIntervalHours = 6
}

func (c *Config) parseConfigFile(flagPath string) error {
	configPath := flagPath
	if envPath := os.Getenv("CONFIG"); envPath != "" {
		if configPath != "" && configPath != envPath {
			return fmt.Errorf("conflicting config paths: flag=%s env=%s", configPath, envPath)
		}
		configPath = envPath
	}

	if configPath == "" {
		for _, loc := range getConfigLocations() {
			if _, err := os.Stat(loc); err == nil {
				configPath = loc
				break
			}
		}
	}

	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(configPath), ".env") {
		envMap, err := godotenv.Read(configPath)
		if err != nil {
			return fmt.Errorf("error loading .env file: %w", err)
		}
		if err := env.ParseWithOptions(c, env.Options{Environment: envMap}); err != nil {
			return fmt.Errorf("error parsing .env file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("error parsing yaml config: %w", err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxConcurrentDeliveries < 1 {
		return errors.New("max_concurrent_deliveries must be at least 1")
	}
	if c.RetryBackoffMultiplier < 1 {
		return errors.New("retry_backoff_multiplier must be at least 1")
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New("retry_max_attempts must be at least 1")
	}
	return nil
}

// Parse builds the effective config: defaults, then the config file, then
// environment variables (highest priority).
func Parse(configPath string) (*Config, error) {
	var config Config
	config.initDefaults()

	if err := config.parseConfigFile(configPath); err != nil {
		return nil, err
	}
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("error parsing environment variables: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}

func (c *Config) QueueTickInterval() time.Duration {
	return time.Duration(c.QueueTickIntervalMS) * time.Millisecond
}

func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialDelayMS) * time.Millisecond
}

func (c *Config) RetentionMaxAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) RetentionInterval() time.Duration {
	return time.Duration(c.RetentionIntervalHours) * time.Hour
}
