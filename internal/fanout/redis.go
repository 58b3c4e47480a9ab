package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis fans updates out over Redis pub/sub so several server processes can
// serve the same match.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{client: client, log: log}
}

func channel(matchID string) string {
	return "scorebook:match:" + matchID + ":updates"
}

func (r *Redis) Publish(ctx context.Context, u Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	if err := r.client.Publish(ctx, channel(u.MatchID), data).Err(); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

func (r *Redis) SubscribeToMatch(ctx context.Context, matchID string, fn Handler) (func(), error) {
	pubsub := r.client.Subscribe(ctx, channel(matchID))
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", matchID, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				r.log.Warn("dropping malformed update",
					zap.String("match_id", matchID),
					zap.Error(err))
				continue
			}
			fn(u)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			pubsub.Close()
			<-done
		})
	}, nil
}

// Close is a no-op; the client is owned by whoever dialed it.
func (r *Redis) Close() error { return nil }
