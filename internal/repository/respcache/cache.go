// Package respcache memoizes finished response payloads in the shared key/value store.
package respcache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/numistr/internal/db"
)

const keyPrefix = "cache:"

// store is the consumer interface for the payload cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a get-or-compute payload cache. A nil store disables caching.
type Cache struct {
	store      store
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a payload cache.
// cacheTotal is a counter vec with labels "payload" and "result" ("hit"/"miss"), passed explicitly.
func New(s store, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, cacheTotal: cacheTotal, logger: logger}
}

// GetOrCompute returns the payload cached under key, or runs produce and caches its output for ttl.
// Producer errors are returned as is and never cached; store failures only log.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	key string,
	ttl time.Duration,
	produce func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	if c.store == nil || ttl <= 0 {
		return produce(ctx)
	}

	if data, ok := c.get(ctx, key); ok {
		c.inc(key, "hit")
		return data, nil
	}
	c.inc(key, "miss")

	data, err := produce(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.SetWithTTL(ctx, keyPrefix+key, data, ttl); err != nil {
		c.logger.Warn("Failed to cache payload", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, keyPrefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached payload", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, len(data) > 0
}

func (c *Cache) inc(key, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(key, result).Inc()
	}
}
