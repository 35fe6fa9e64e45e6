package numistr

import (
	"context"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/suggest"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/domain/material"
	cataloguc "github.com/kailas-cloud/numistr/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/numistr/internal/usecase/health"
)

// --- catalogUseCase mock ---

type mockCatalogUC struct {
	listFn    func(ctx context.Context, req listing.Request) (cataloguc.ListResult, error)
	facetsFn  func(ctx context.Context, req facet.Request) (facet.Result, error)
	suggestFn func(ctx context.Context, req suggest.Request) ([]string, error)
	itemFn    func(ctx context.Context, key variant.Key, opts cataloguc.ItemOptions) (cataloguc.ItemView, error)
	imagesFn  func(ctx context.Context, id int64, wm int, abs bool) ([]cataloguc.ImageView, error)
	statsFn   func(ctx context.Context) (stats.Summary, error)
	regionsFn func(ctx context.Context) ([]stats.RegionCount, error)
	materials []material.Entry
}

func (m *mockCatalogUC) List(ctx context.Context, req listing.Request) (cataloguc.ListResult, error) {
	return m.listFn(ctx, req)
}

func (m *mockCatalogUC) Facets(ctx context.Context, req facet.Request) (facet.Result, error) {
	return m.facetsFn(ctx, req)
}

func (m *mockCatalogUC) Suggest(ctx context.Context, req suggest.Request) ([]string, error) {
	return m.suggestFn(ctx, req)
}

func (m *mockCatalogUC) Item(
	ctx context.Context, key variant.Key, opts cataloguc.ItemOptions,
) (cataloguc.ItemView, error) {
	if m.itemFn == nil {
		return cataloguc.ItemView{}, domain.ErrNotFound
	}
	return m.itemFn(ctx, key, opts)
}

func (m *mockCatalogUC) Images(ctx context.Context, id int64, wm int, abs bool) ([]cataloguc.ImageView, error) {
	return m.imagesFn(ctx, id, wm, abs)
}

func (m *mockCatalogUC) Stats(ctx context.Context) (stats.Summary, error) {
	return m.statsFn(ctx)
}

func (m *mockCatalogUC) Regions(ctx context.Context) ([]stats.RegionCount, error) {
	return m.regionsFn(ctx)
}

func (m *mockCatalogUC) Materials() []material.Entry { return m.materials }

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- helpers ---

func testClient(catalog catalogUseCase) *Client {
	return &Client{catalog: catalog, maxPerPage: 100}
}
