package catalog

import (
	"context"
	"time"

	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/domain/material"
)

// Repository defines the storage contract for scoped catalog queries.
type Repository interface {
	Count(ctx context.Context, allowed []int64, f filter.Set) (int64, error)
	List(ctx context.Context, allowed []int64, req listing.Request) ([]variant.Row, error)
	// Facet returns ordered, limited counts. Material counts are already merged per canonical material.
	Facet(ctx context.Context, allowed []int64, f filter.Set, d facet.Dimension, limit int) ([]facet.Count, error)
	YearHistogram(ctx context.Context, allowed []int64, f filter.Set, width int) ([]facet.Bucket, error)
	Suggest(ctx context.Context, allowed []int64, d facet.Dimension, text string, limit int) ([]string, error)
	FindByKey(ctx context.Context, allowed []int64, key variant.Key) (variant.Row, error)
	Exists(ctx context.Context, allowed []int64, id int64) (bool, error)
	Images(ctx context.Context, variantID int64) ([]variant.Image, error)
	Regions(ctx context.Context, allowed []int64) ([]stats.RegionCount, error)
	Stats(ctx context.Context, allowed []int64) (stats.Summary, error)
}

// Taxonomy resolves the categories variants are visible in.
type Taxonomy interface {
	AllowedIDs(ctx context.Context, rootID int64) ([]int64, error)
}

// Cache memoizes finished payloads.
type Cache interface {
	GetOrCompute(
		ctx context.Context, key string, ttl time.Duration,
		produce func(ctx context.Context) ([]byte, error),
	) ([]byte, error)
}

// Materials canonicalizes material values.
type Materials interface {
	Normalize(raw string) (string, bool)
	List() []material.Entry
}
