// Package config loads the service configuration from defaults, an optional
// tbl.yaml file and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the service configuration.
type Config struct {
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	DatabaseURL        string        `mapstructure:"database_url" validate:"required"`
	RedisURL           string        `mapstructure:"redis_url" validate:"omitempty,url"`
	TreeDir            string        `mapstructure:"tree_dir"`
	LogLevel           string        `mapstructure:"log_level" validate:"oneof=dev debug info warn error"`
	SessionMaxAge      time.Duration `mapstructure:"session_max_age" validate:"gte=0"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout" validate:"gte=0"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
	EventBuffer        int           `mapstructure:"event_buffer" validate:"min=1"`
	BatchLimit         int           `mapstructure:"batch_limit" validate:"min=1"`
	DuplicateTemplates bool          `mapstructure:"duplicate_templates"`
}

// Load reads the configuration. Environment variables use the upper-case
// key names (PORT, DATABASE_URL, REDIS_URL, ...). configPath, when set,
// names the config file; otherwise tbl.yaml is looked up in the working
// directory and is optional.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "file:tbl.db?_pragma=foreign_keys(1)")
	v.SetDefault("redis_url", "")
	v.SetDefault("tree_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_max_age", 24*time.Hour)
	v.SetDefault("session_idle_timeout", 30*time.Minute)
	v.SetDefault("cleanup_interval", time.Minute)
	v.SetDefault("event_buffer", 256)
	v.SetDefault("batch_limit", 8)
	v.SetDefault("duplicate_templates", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tbl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
