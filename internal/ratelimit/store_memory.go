// Package ratelimit throttles unauthenticated traffic per client IP.
//
// Applicant routes are guarded by a short access code, so the limiter caps
// how fast a single address can guess codes. Stores count requests per key
// and window; the middleware turns a denial into 429.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees up.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// sweepInterval is how often Allow drops keys whose hits have all aged out.
const sweepInterval = time.Minute

// InMemoryStore is a sliding-window store for single-instance deployments.
type InMemoryStore struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	now       func() time.Time
	maxWindow time.Duration
	lastSweep time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.maxWindow = max(s.maxWindow, window)
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}

	hits := prune(s.windows[key], now.Add(-window))
	if len(hits) == 0 {
		delete(s.windows, key)
	}
	if len(hits) >= limit {
		if len(hits) > 0 {
			s.windows[key] = hits
		}
		resetAt := now.Add(window)
		if len(hits) > 0 {
			resetAt = hits[0].Add(window)
		}
		return &Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}

	hits = append(hits, now)
	s.windows[key] = hits
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(hits),
		ResetAt:   hits[0].Add(window),
	}, nil
}

// sweep removes keys with no hit inside the longest window any caller uses.
func (s *InMemoryStore) sweep(now time.Time) {
	cutoff := now.Add(-s.maxWindow)
	for key, hits := range s.windows {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}

// prune drops timestamps at or before cutoff. hits is sorted ascending.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	return hits[i:]
}
