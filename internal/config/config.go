package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDev          bool          `env:"LOG_DEV" envDefault:"false"`
	StoreBackend    string        `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	FanoutBackend   string        `env:"FANOUT_BACKEND" envDefault:"local"`
	RedisTTL        time.Duration `env:"REDIS_TTL" envDefault:"72h"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RulesDir        string        `env:"RULES_DIR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs error
	switch c.StoreBackend {
	case "memory", "redis":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = multierr.Append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("STORE_BACKEND must be memory, redis or postgres, got %q", c.StoreBackend))
	}
	switch c.FanoutBackend {
	case "local", "redis":
	default:
		errs = multierr.Append(errs, fmt.Errorf("FANOUT_BACKEND must be local or redis, got %q", c.FanoutBackend))
	}
	if c.NeedsRedis() && c.RedisURL == "" {
		errs = multierr.Append(errs, errors.New("REDIS_URL is required"))
	}
	if c.RedisTTL < 0 {
		errs = multierr.Append(errs, errors.New("REDIS_TTL must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errs
}

func (c Config) NeedsRedis() bool {
	return c.StoreBackend == "redis" || c.FanoutBackend == "redis"
}
