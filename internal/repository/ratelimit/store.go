// Package ratelimit stores fixed-window request counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/numistr/internal/db"
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Store implements fixed-window counters on top of DB (INCR + EXPIRE NX).
type Store struct {
	store  store
	window time.Duration
}

// New creates a counter store. window is the fixed window length (recommended: 60s).
func New(s store, window time.Duration) *Store {
	return &Store{store: s, window: window}
}

// Window returns the configured window length.
func (s *Store) Window() time.Duration { return s.window }

// Hit atomically counts one request for (endpoint, ip) in the current window
// and returns the count including this request.
// The window starts with the first request and is not extended by later ones.
func (s *Store) Hit(ctx context.Context, endpoint, ip string) (int64, error) {
	key := counterKey(endpoint, ip)
	n, err := s.store.IncrWithTTL(ctx, key, s.window)
	if err != nil {
		return 0, fmt.Errorf("ratelimit INCR %s: %w", key, err)
	}
	return n, nil
}

// Reset returns the time left until the current window for (endpoint, ip) closes.
// A missing counter reports the full window.
func (s *Store) Reset(ctx context.Context, endpoint, ip string) (time.Duration, error) {
	key := counterKey(endpoint, ip)
	ttl, err := s.store.TTL(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return s.window, nil
		}
		return 0, fmt.Errorf("ratelimit TTL %s: %w", key, err)
	}
	if ttl <= 0 || ttl > s.window {
		return s.window, nil
	}
	return ttl, nil
}

// Keys follow the pattern rl:{endpoint}:{ip}.
func counterKey(endpoint, ip string) string {
	return "rl:" + endpoint + ":" + ip
}
