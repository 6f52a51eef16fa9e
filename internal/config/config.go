package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	RawLogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
	RawPolicy   string `env:"MATCH_POLICY" envDefault:"all"`
	WorkerID    string `env:"WORKER_ID"`

	// derived from the raw values above
	LogLevel    slog.Level
	MatchPolicy rules.Policy
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)

	policy, err := rules.ParsePolicy(cfg.RawPolicy)
	if err != nil {
		return nil, fmt.Errorf("MATCH_POLICY: %w", err)
	}
	cfg.MatchPolicy = policy

	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
