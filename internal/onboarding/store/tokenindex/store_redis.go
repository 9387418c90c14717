// Package tokenindex caches token hash to session id lookups in Redis so
// applicant requests skip the session table scan on the hot path.
package tokenindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
)

var lookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "onboarding_token_index_lookup_duration_ms",
	Help:    "Latency of token index lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const keyPrefix = "onboarding:token:"

// RedisIndex maps token hashes to session ids. Keys expire together with
// the token so an entry never outlives its session credential.
type RedisIndex struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

// Put records hash -> sessionID until expiresAt.
func (r *RedisIndex) Put(ctx context.Context, tokenHash string, sessionID id.SessionID, expiresAt time.Time) error {
	if tokenHash == "" {
		return nil
	}
	err := r.client.SetArgs(ctx, keyPrefix+tokenHash, sessionID.String(), redis.SetArgs{ExpireAt: expiresAt}).Err()
	if err != nil {
		return fmt.Errorf("token index put: %w", err)
	}
	return nil
}

// Lookup returns the session bound to tokenHash. Absent keys report false.
func (r *RedisIndex) Lookup(ctx context.Context, tokenHash string) (id.SessionID, bool, error) {
	start := time.Now()
	defer func() {
		lookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	val, err := r.client.Get(ctx, keyPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return id.SessionID{}, false, nil
	}
	if err != nil {
		return id.SessionID{}, false, fmt.Errorf("token index lookup: %w", err)
	}
	sessionID, err := id.ParseSessionID(val)
	if err != nil {
		return id.SessionID{}, false, fmt.Errorf("token index holds invalid session id: %w", err)
	}
	return sessionID, true, nil
}

// Delete drops the entry, used when a session is invalidated.
func (r *RedisIndex) Delete(ctx context.Context, tokenHash string) error {
	return r.client.Del(ctx, keyPrefix+tokenHash).Err()
}
