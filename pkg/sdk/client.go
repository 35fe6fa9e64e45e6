package numistr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/numistr/internal/config"
	dbPostgres "github.com/kailas-cloud/numistr/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/numistr/internal/db/redis"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/suggest"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/domain/material"
	"github.com/kailas-cloud/numistr/internal/metrics"
	catalogrepo "github.com/kailas-cloud/numistr/internal/repository/catalog"
	"github.com/kailas-cloud/numistr/internal/repository/respcache"
	taxonomyrepo "github.com/kailas-cloud/numistr/internal/repository/taxonomy"
	cataloguc "github.com/kailas-cloud/numistr/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/numistr/internal/usecase/health"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, replaced in tests.
type catalogUseCase interface {
	List(ctx context.Context, req listing.Request) (cataloguc.ListResult, error)
	Facets(ctx context.Context, req facet.Request) (facet.Result, error)
	Suggest(ctx context.Context, req suggest.Request) ([]string, error)
	Item(ctx context.Context, key variant.Key, opts cataloguc.ItemOptions) (cataloguc.ItemView, error)
	Images(ctx context.Context, variantID int64, wm int, abs bool) ([]cataloguc.ImageView, error)
	Stats(ctx context.Context) (stats.Summary, error)
	Regions(ctx context.Context) ([]stats.RegionCount, error)
	Materials() []material.Entry
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the numistr SDK entry point.
type Client struct {
	pg         *dbPostgres.Store
	kv         *dbRedis.Store
	catalog    catalogUseCase
	health     healthUseCase
	maxPerPage int
	obs        *observer
}

// New creates a Client and connects to the catalog database.
// The provided context is used for the initial readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		maxConns:       4,
		keyPrefix:      "numistr:",
		rootCategoryID: 16,
		safeCap:        2000,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.dsn == "" {
		return nil, errors.New("numistr: database DSN required (use WithPostgres)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	pg, err := dbPostgres.NewStore(ctx, dbPostgres.Config{DSN: cfg.dsn, MaxConns: cfg.maxConns})
	if err != nil {
		return nil, fmt.Errorf("numistr: create postgres store: %w", err)
	}
	if err := pg.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		pg.Close()
		return nil, fmt.Errorf("numistr: database not ready: %w", err)
	}

	var kv *dbRedis.Store
	if len(cfg.redisAddrs) > 0 {
		kv, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.redisAddrs,
			Password: cfg.redisPassword,
			Prefix:   cfg.keyPrefix,
		})
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("numistr: create redis store: %w", err)
		}
		if err := kv.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			kv.Close()
			pg.Close()
			return nil, fmt.Errorf("numistr: redis not ready: %w", err)
		}
	}

	return wireClient(pg, kv, cfg, obs), nil
}

// wireClient builds the catalog service on the server's defaults for schema, materials and budgets.
func wireClient(pg *dbPostgres.Store, kv *dbRedis.Store, cfg *clientConfig, obs *observer) *Client {
	var defaults config.Config
	defaults.ApplyDefaults()
	cat := defaults.Catalog

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	materials := material.NewNormalizer(defaults.Materials.Table())
	repo := catalogrepo.New(pg, catalogrepo.Config{
		VariantTables:   cat.VariantTables,
		AttributeTables: cat.AttributeTables,
		ContentTable:    cat.ContentTable,
		ImageTable:      cat.ImageTable,
		FieldIDs:        cat.FieldIDs,
	}, materials, logger)
	taxonomy := taxonomyrepo.New(pg, cat.CategoryTable, cat.Extension)

	// Pass a nil interface (not a typed nil pointer) when no cache is configured.
	cache := respcache.New(nil, metrics.ResponseCacheTotal, logger)
	var cachePinger healthuc.Pinger
	if kv != nil {
		cache = respcache.New(kv, metrics.ResponseCacheTotal, logger)
		cachePinger = kv
	}

	svc := cataloguc.New(repo, taxonomy, cache, materials, cataloguc.Config{
		RootCategoryID: cfg.rootCategoryID,
		SafeCap:        cfg.safeCap,
		TitleLanguages: cat.TitleLanguages,
		StatsTTL:       time.Duration(defaults.Cache.TTLStatsSec) * time.Second,
		RegionsTTL:     time.Duration(defaults.Cache.TTLRegionSec) * time.Second,
		Budget:         filter.DefaultBudget(),
		Images:         variant.ImageURLs{Root: cfg.imageRoot, ViewerPath: defaults.Images.ViewerPath},
	})

	return &Client{
		pg:         pg,
		kv:         kv,
		catalog:    svc,
		health:     healthuc.New(pg, cachePinger),
		maxPerPage: cat.MaxPerPage,
		obs:        obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.kv != nil {
		c.kv.Close()
	}
	if c.pg != nil {
		c.pg.Close()
	}
}
