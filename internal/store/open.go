package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Kind        string // memory | redis | postgres
	DatabaseURL string
	Redis       *redis.Client
	RedisTTL    time.Duration
}

// Open returns the backend selected by opts.Kind.
func Open(opts Options) (Backend, error) {
	switch opts.Kind {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		if opts.Redis == nil {
			return nil, errors.New("redis backend needs a client")
		}
		return NewRedis(opts.Redis, opts.RedisTTL), nil
	case "postgres":
		return OpenPostgres(opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Kind)
	}
}
