package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "onboarding:ratelimit:"

// RedisStore is a fixed-window counter shared by every server instance.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow increments the counter of the window containing now. The key
// expires with the window.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := s.now()
	start := now.Truncate(window)
	resetAt := start.Add(window)
	redisKey := keyPrefix + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireAt(ctx, redisKey, resetAt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}

	count := int(incr.Val())
	if count > limit {
		return &Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}
	return &Result{Allowed: true, Limit: limit, Remaining: limit - count, ResetAt: resetAt}, nil
}
