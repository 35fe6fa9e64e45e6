package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/domain/material"
)

// mockRepo implements Repository for tests. Unset functions return zero values.
type mockRepo struct {
	mu sync.Mutex

	countFn         func(ctx context.Context, allowed []int64, f filter.Set) (int64, error)
	listFn          func(ctx context.Context, allowed []int64, req listing.Request) ([]variant.Row, error)
	facetFn         func(ctx context.Context, d facet.Dimension, limit int) ([]facet.Count, error)
	yearHistogramFn func(ctx context.Context, width int) ([]facet.Bucket, error)
	suggestFn       func(ctx context.Context, d facet.Dimension, text string, limit int) ([]string, error)
	findByKeyFn     func(ctx context.Context, key variant.Key) (variant.Row, error)
	existsFn        func(ctx context.Context, id int64) (bool, error)
	imagesFn        func(ctx context.Context, id int64) ([]variant.Image, error)
	regionsFn       func(ctx context.Context) ([]stats.RegionCount, error)
	statsFn         func(ctx context.Context) (stats.Summary, error)

	calls []string
}

func (m *mockRepo) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
}

func (m *mockRepo) Count(ctx context.Context, allowed []int64, f filter.Set) (int64, error) {
	m.record("count")
	if m.countFn != nil {
		return m.countFn(ctx, allowed, f)
	}
	return 0, nil
}

func (m *mockRepo) List(ctx context.Context, allowed []int64, req listing.Request) ([]variant.Row, error) {
	m.record("list")
	if m.listFn != nil {
		return m.listFn(ctx, allowed, req)
	}
	return []variant.Row{}, nil
}

func (m *mockRepo) Facet(
	ctx context.Context, _ []int64, _ filter.Set, d facet.Dimension, limit int,
) ([]facet.Count, error) {
	m.record("facet_" + string(d))
	if m.facetFn != nil {
		return m.facetFn(ctx, d, limit)
	}
	return []facet.Count{}, nil
}

func (m *mockRepo) YearHistogram(ctx context.Context, _ []int64, _ filter.Set, width int) ([]facet.Bucket, error) {
	m.record("years")
	if m.yearHistogramFn != nil {
		return m.yearHistogramFn(ctx, width)
	}
	return []facet.Bucket{}, nil
}

func (m *mockRepo) Suggest(
	ctx context.Context, _ []int64, d facet.Dimension, text string, limit int,
) ([]string, error) {
	m.record("suggest")
	if m.suggestFn != nil {
		return m.suggestFn(ctx, d, text, limit)
	}
	return []string{}, nil
}

func (m *mockRepo) FindByKey(ctx context.Context, _ []int64, key variant.Key) (variant.Row, error) {
	m.record("find")
	if m.findByKeyFn != nil {
		return m.findByKeyFn(ctx, key)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRepo) Exists(ctx context.Context, _ []int64, id int64) (bool, error) {
	m.record("exists")
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return false, nil
}

func (m *mockRepo) Images(ctx context.Context, id int64) ([]variant.Image, error) {
	m.record("images")
	if m.imagesFn != nil {
		return m.imagesFn(ctx, id)
	}
	return []variant.Image{}, nil
}

func (m *mockRepo) Regions(ctx context.Context, _ []int64) ([]stats.RegionCount, error) {
	m.record("regions")
	if m.regionsFn != nil {
		return m.regionsFn(ctx)
	}
	return []stats.RegionCount{}, nil
}

func (m *mockRepo) Stats(ctx context.Context, _ []int64) (stats.Summary, error) {
	m.record("stats")
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return stats.Summary{}, nil
}

func (m *mockRepo) called(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

type mockTaxonomy struct {
	ids []int64
	err error
}

func (m *mockTaxonomy) AllowedIDs(context.Context, int64) ([]int64, error) {
	return m.ids, m.err
}

// memCache is an in-memory Cache that never expires entries.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) GetOrCompute(
	ctx context.Context, key string, _ time.Duration,
	produce func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	v, err := produce(ctx)
	if err != nil {
		return nil, err
	}
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = v
	return v, nil
}

func testMaterials() *material.Normalizer {
	return material.NewNormalizer(material.Table{
		ShortCodes: map[string]string{"ar": material.Silver, "ae": material.Bronze},
		Variants: map[string][]string{
			material.Silver: {"silver", "ar", "gümüş"},
			material.Bronze: {"bronze", "ae", "bronz"},
		},
		Stems: material.DefaultStems(),
		List:  []material.Entry{{Code: "ar", Name: "Silver", NameTR: "Gümüş"}},
	})
}

func testConfig() Config {
	return Config{
		RootCategoryID: 16,
		SafeCap:        2000,
		TitleLanguages: []string{"tr", "en"},
		StatsTTL:       5 * time.Minute,
		RegionsTTL:     time.Hour,
		Budget:         filter.DefaultBudget(),
		Images:         variant.ImageURLs{Root: "https://numistr.org/", ViewerPath: "/index.php?option=com_numistr&view=gorsel"},
	}
}

func newTestService(t *testing.T) (*Service, *mockRepo, *mockTaxonomy) {
	t.Helper()
	repo := &mockRepo{}
	tax := &mockTaxonomy{ids: []int64{16, 17}}
	return New(repo, tax, &memCache{}, testMaterials(), testConfig()), repo, tax
}

func mustFilter(t *testing.T, raw filter.Raw) filter.Set {
	t.Helper()
	f, err := filter.New(raw)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	return f
}
