// Package redis builds the shared go-redis client behind the token index and
// the rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/gramv/onboardingsoftware-sub000/internal/platform/config"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
)

type Client struct {
	*redis.Client
}

// New connects to cfg.URL and returns nil, nil when no URL is configured.
// The initial ping is retried a few times so the service tolerates Redis
// starting alongside it.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	var pingErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if pingErr = client.Ping(ctx).Err(); pingErr == nil {
			return &Client{Client: client}, nil
		}
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", ctx.Err())
		case <-time.After(connectBackoff * time.Duration(attempt)):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("redis ping failed after %d attempts: %w", connectAttempts, pingErr)
}

func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// RegisterMetrics exposes connection pool gauges on reg.
func (c *Client) RegisterMetrics(reg prometheus.Registerer) {
	gauge := func(name, help string, value func(*redis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "onboarding_redis_pool_" + name,
			Help: help,
		}, func() float64 {
			return float64(value(c.PoolStats()))
		})
	}
	reg.MustRegister(
		gauge("total_connections", "Connections currently held by the Redis pool.",
			func(s *redis.PoolStats) uint32 { return s.TotalConns }),
		gauge("idle_connections", "Idle connections in the Redis pool.",
			func(s *redis.PoolStats) uint32 { return s.IdleConns }),
		gauge("timeouts", "Times a caller waited too long for a pooled connection.",
			func(s *redis.PoolStats) uint32 { return s.Timeouts }),
	)
}
