package catalog

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/material"
	"github.com/kailas-cloud/numistr/internal/logger"
)

// Cache keys per payload class.
const (
	statsKey   = "stats"
	regionsKey = "regions"
)

// Stats returns catalog-wide aggregates, memoized for StatsTTL.
func (s *Service) Stats(ctx context.Context) (stats.Summary, error) {
	return cachedJSON(ctx, s.cache, statsKey, s.cfg.StatsTTL, func(ctx context.Context) (stats.Summary, error) {
		allowed, err := s.scope(ctx)
		if err != nil || len(allowed) == 0 {
			return stats.Summary{}, err
		}
		var sum stats.Summary
		err = s.observe(ctx, "stats", func(ctx context.Context) error {
			sum, err = s.repo.Stats(ctx, allowed)
			return err
		})
		return sum, err
	})
}

// Regions returns region codes with variant counts, memoized for RegionsTTL.
func (s *Service) Regions(ctx context.Context) ([]stats.RegionCount, error) {
	return cachedJSON(ctx, s.cache, regionsKey, s.cfg.RegionsTTL, func(ctx context.Context) ([]stats.RegionCount, error) {
		allowed, err := s.scope(ctx)
		if err != nil {
			return nil, err
		}
		if len(allowed) == 0 {
			return []stats.RegionCount{}, nil
		}
		var regions []stats.RegionCount
		err = s.observe(ctx, "regions", func(ctx context.Context) error {
			regions, err = s.repo.Regions(ctx, allowed)
			return err
		})
		return regions, err
	})
}

// Materials returns the configured materials list.
func (s *Service) Materials() []material.Entry {
	return s.materials.List()
}

// cachedJSON memoizes a JSON-encodable value. Without a cache it calls produce directly.
// A cached entry that no longer decodes is recomputed.
func cachedJSON[T any](
	ctx context.Context, c Cache, key string, ttl time.Duration,
	produce func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return produce(ctx)
	}

	var (
		fresh    T
		computed bool
	)
	data, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		fresh, computed = v, true
		return json.Marshal(v)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if computed {
		return fresh, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		logger.FromContext(ctx).Warn("Failed to decode cached payload", zap.String("key", key), zap.Error(err))
		return produce(ctx)
	}
	return v, nil
}
