package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps each stream as a list of payloads plus a set of seen event ids.
// All keys of a stream share one TTL that is refreshed on every append.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "scorebook", ttl: ttl}
}

// DialRedis parses url, pings the server and returns the client.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) key(stream, part string) string {
	return r.prefix + ":" + stream + ":" + part
}

// appendScript checks the id set, pushes the payload, then claims the id.
// A failed push leaves the id unclaimed so the write can be retried.
var appendScript = redis.NewScript(`
if ARGV[2] ~= "" and redis.call("SISMEMBER", KEYS[2], ARGV[2]) == 1 then
	return 0
end
redis.call("RPUSH", KEYS[1], ARGV[1])
if ARGV[2] ~= "" then
	redis.call("SADD", KEYS[2], ARGV[2])
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
	redis.call("PEXPIRE", KEYS[2], ttl)
end
return 1
`)

func (r *Redis) Append(ctx context.Context, stream, eventID string, payload []byte) error {
	keys := []string{r.key(stream, "events"), r.key(stream, "ids")}
	added, err := appendScript.Run(ctx, r.client, keys, payload, eventID, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	if added == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

func (r *Redis) Events(ctx context.Context, stream string) ([][]byte, error) {
	vals, err := r.client.LRange(ctx, r.key(stream, "events"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (r *Redis) PutSnapshot(ctx context.Context, stream string, payload []byte) error {
	if err := r.client.Set(ctx, r.key(stream, "snapshot"), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Snapshot(ctx context.Context, stream string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(stream, "snapshot")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return b, nil
}

func (r *Redis) Clear(ctx context.Context, stream string) error {
	err := r.client.Del(ctx, r.key(stream, "events"), r.key(stream, "ids"), r.key(stream, "snapshot")).Err()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by whoever dialed it.
func (r *Redis) Close() error { return nil }
