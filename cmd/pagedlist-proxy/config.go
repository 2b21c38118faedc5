package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from .env files.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	UpstreamURL     string        `env:"UPSTREAM_URL,required"`
	UserAgent       string        `env:"USER_AGENT" envDefault:"pagedlist-proxy/0.1.0"`
	ErrorThreshold  int           `env:"ERROR_THRESHOLD" envDefault:"10"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	MaxSessions int           `env:"MAX_SESSIONS" envDefault:"1000"`

	PrefetchConcurrency int           `env:"PREFETCH_CONCURRENCY" envDefault:"4"`
	PrefetchTimeout     time.Duration `env:"PREFETCH_TIMEOUT" envDefault:"15s"`
}

// LoadEnv loads the env files that exist. Variables already set win.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// LoadConfig loads files and parses the environment into a Config.
func LoadConfig(files ...string) (Config, error) {
	if _, err := LoadEnv(files); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive"))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("MAX_SESSIONS must be positive"))
	}
	return errors.Join(errs...)
}
