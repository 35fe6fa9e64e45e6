package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/suggest"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/logger"
	"github.com/kailas-cloud/numistr/internal/metrics"
)

// Config holds catalog query policy.
type Config struct {
	RootCategoryID int64
	SafeCap        int64 // listing totals above this need a narrowing filter
	TitleLanguages []string
	StatsTTL       time.Duration
	RegionsTTL     time.Duration
	Budget         filter.Budget
	Images         variant.ImageURLs
}

// Service runs guarded catalog queries inside the allowed category scope.
type Service struct {
	repo      Repository
	taxonomy  Taxonomy
	cache     Cache
	materials Materials
	cfg       Config
}

// New creates a catalog service.
func New(repo Repository, taxonomy Taxonomy, cache Cache, materials Materials, cfg Config) *Service {
	return &Service{repo: repo, taxonomy: taxonomy, cache: cache, materials: materials, cfg: cfg}
}

// ListResult is one listing page, or only the total in count mode.
type ListResult struct {
	Rows       []variant.Row
	Pagination listing.Pagination
	Sort       listing.Sort
	CountOnly  bool
}

// List counts and pages variants matching the request.
// Count-only requests skip both guardrails.
func (s *Service) List(ctx context.Context, req listing.Request) (ListResult, error) {
	f := req.Filters()
	if !req.CountOnly() {
		if err := f.CheckBroad(); err != nil {
			metrics.GuardrailRejectionsTotal.WithLabelValues("too_broad").Inc()
			return ListResult{}, err
		}
	}

	allowed, err := s.scope(ctx)
	if err != nil {
		return ListResult{}, err
	}
	res := ListResult{Sort: req.Sort(), CountOnly: req.CountOnly(), Rows: []variant.Row{}}
	if len(allowed) == 0 {
		res.Pagination = req.Paginate(0)
		return res, nil
	}

	ctx, cancel := s.budget(ctx, f)
	defer cancel()

	var total int64
	err = s.observe(ctx, "count", func(ctx context.Context) error {
		total, err = s.repo.Count(ctx, allowed, f)
		return err
	})
	if err != nil {
		return ListResult{}, err
	}
	res.Pagination = req.Paginate(total)
	if req.CountOnly() {
		return res, nil
	}

	if total > s.cfg.SafeCap && !f.HasNarrowing() {
		metrics.GuardrailRejectionsTotal.WithLabelValues("too_large").Inc()
		return ListResult{}, &domain.ResultTooLargeError{Total: total}
	}

	err = s.observe(ctx, "list", func(ctx context.Context) error {
		res.Rows, err = s.repo.List(ctx, allowed, req)
		return err
	})
	if err != nil {
		return ListResult{}, err
	}
	return res, nil
}

// Facets aggregates every requested dimension under the active filters.
// Dimensions run concurrently; any failure fails the whole request.
func (s *Service) Facets(ctx context.Context, req facet.Request) (facet.Result, error) {
	res := facet.Empty(req.Bucket())

	allowed, err := s.scope(ctx)
	if err != nil {
		return facet.Result{}, err
	}
	if len(allowed) == 0 {
		return res, nil
	}

	f := req.Filters()
	ctx, cancel := s.budget(ctx, f)
	defer cancel()

	err = s.observe(ctx, "count", func(ctx context.Context) error {
		res.Total, err = s.repo.Count(ctx, allowed, f)
		return err
	})
	if err != nil {
		return facet.Result{}, err
	}
	if req.MetaOnly() {
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	targets := map[facet.Dimension]*[]facet.Count{
		facet.Mint:      &res.Mint,
		facet.Authority: &res.Authority,
		facet.Material:  &res.Material,
	}
	for _, d := range facet.Categorical {
		d := d
		if req.Skips(d) {
			continue
		}
		out := targets[d]
		g.Go(func() error {
			return s.observe(gctx, "facet_"+string(d), func(ctx context.Context) error {
				counts, err := s.repo.Facet(ctx, allowed, f, d, req.Limit())
				if err != nil {
					return err
				}
				*out = counts
				return nil
			})
		})
	}
	if !req.Skips(facet.Years) {
		g.Go(func() error {
			return s.observe(gctx, "facet_years", func(ctx context.Context) error {
				buckets, err := s.repo.YearHistogram(ctx, allowed, f, req.Bucket())
				if err != nil {
					return err
				}
				res.Years = buckets
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return facet.Result{}, err
	}
	return res, nil
}

// Suggest returns typeahead names. Queries shorter than two characters return nothing without querying.
func (s *Service) Suggest(ctx context.Context, req suggest.Request) ([]string, error) {
	if req.TooShort() {
		return []string{}, nil
	}
	allowed, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return []string{}, nil
	}

	var names []string
	err = s.observe(ctx, "suggest_"+string(req.Dimension()), func(ctx context.Context) error {
		names, err = s.repo.Suggest(ctx, allowed, facet.Dimension(req.Dimension()), req.Query(), req.Limit())
		return err
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// scope returns the allowed category ids.
func (s *Service) scope(ctx context.Context) ([]int64, error) {
	ids, err := s.taxonomy.AllowedIDs(ctx, s.cfg.RootCategoryID)
	if err != nil {
		return nil, fmt.Errorf("resolve scope: %w", err)
	}
	return ids, nil
}

// budget bounds the request by the complexity-derived timeout.
func (s *Service) budget(ctx context.Context, f filter.Set) (context.Context, context.CancelFunc) {
	timeout := s.cfg.Budget.Timeout(f.Complexity())
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// observe times op and classifies its failure. A deadline hit surfaces as domain.ErrQueryTimeout.
func (s *Service) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	metrics.CatalogQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.CatalogQueryErrorsTotal.WithLabelValues(op, "timeout").Inc()
		logger.FromContext(ctx).Warn("Catalog query timed out", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, domain.ErrQueryTimeout, err)
	}
	if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, context.Canceled) {
		metrics.CatalogQueryErrorsTotal.WithLabelValues(op, "storage").Inc()
	}
	return fmt.Errorf("%s: %w", op, err)
}
