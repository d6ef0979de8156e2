package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yoyaba/gtm-docgen/internal/core"
)

const replayKeyPrefix = "webhook:event:"

// RedisReplayCache implements the ReplayCache interface using Redis SET NX.
// It only flags webhook event ids that were delivered before; the registry's
// terminal-state check stays authoritative, so cache loss is harmless.
type RedisReplayCache struct {
	client redis.UniversalClient
}

// NewRedisReplayCache creates a new RedisReplayCache with the given Redis client.
func NewRedisReplayCache(client redis.UniversalClient) *RedisReplayCache {
	return &RedisReplayCache{client: client}
}

// Claim records the event id if unseen. Returns true when this caller claimed it.
func (r *RedisReplayCache) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id cannot be empty")
	}

	claimed, err := r.client.SetNX(ctx, replayKeyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return claimed, nil
}

// Ping verifies the Redis connection.
func (r *RedisReplayCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ core.ReplayCache = (*RedisReplayCache)(nil)
