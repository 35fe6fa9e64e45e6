package chi

import (
	"context"

	"github.com/kailas-cloud/numistr/internal/domain/account"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/suggest"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/domain/material"
	cataloguc "github.com/kailas-cloud/numistr/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/numistr/internal/usecase/health"
	ratelimituc "github.com/kailas-cloud/numistr/internal/usecase/ratelimit"
)

// Catalog is the consumer interface for catalog queries (ISP).
type Catalog interface {
	List(ctx context.Context, req listing.Request) (cataloguc.ListResult, error)
	Facets(ctx context.Context, req facet.Request) (facet.Result, error)
	Suggest(ctx context.Context, req suggest.Request) ([]string, error)
	Item(ctx context.Context, key variant.Key, opts cataloguc.ItemOptions) (cataloguc.ItemView, error)
	Images(ctx context.Context, variantID int64, wm int, abs bool) ([]cataloguc.ImageView, error)
	Stats(ctx context.Context) (stats.Summary, error)
	Regions(ctx context.Context) ([]stats.RegionCount, error)
	Materials() []material.Entry
}

// Limiter is the consumer interface for request admission (ISP).
type Limiter interface {
	Check(ctx context.Context, endpoint, ip string, ceiling int) (ratelimituc.Decision, error)
}

// Authenticator is the consumer interface for bearer token resolution (ISP).
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (account.User, error)
}

// HealthChecker is the consumer interface for dependency checks (ISP).
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
