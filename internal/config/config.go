// Package config loads tsmcheck settings from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LogConfig
	Validation ValidationConfig
}

type ServerConfig struct {
	Address      string `envconfig:"TSMCHECK_ADDRESS" default:"127.0.0.1:8123"`
	MaxBodyBytes int64  `envconfig:"TSMCHECK_MAX_BODY_BYTES" default:"33554432"`
}

// DatabaseConfig enables run history when Path is set.
type DatabaseConfig struct {
	Path string `envconfig:"TSMCHECK_DATABASE_PATH"`
}

type LogConfig struct {
	Level       string `envconfig:"TSMCHECK_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"TSMCHECK_LOG_DEV" default:"false"`
}

type ValidationConfig struct {
	Workers int  `envconfig:"TSMCHECK_WORKERS" default:"4"`
	Isolate bool `envconfig:"TSMCHECK_ISOLATE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "127.0.0.1:8123",
			MaxBodyBytes: 32 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Validation: ValidationConfig{
			Workers: 4,
			Isolate: false,
		},
	}
}

// HistoryEnabled reports whether validation runs should be persisted.
func (c *Config) HistoryEnabled() bool {
	return c.Database.Path != ""
}
