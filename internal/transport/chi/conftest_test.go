package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/account"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/suggest"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/domain/material"
	cataloguc "github.com/kailas-cloud/numistr/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/numistr/internal/usecase/health"
	ratelimituc "github.com/kailas-cloud/numistr/internal/usecase/ratelimit"
)

// --- Mocks ---

type mockCatalog struct {
	listFn    func(ctx context.Context, req listing.Request) (cataloguc.ListResult, error)
	facetsFn  func(ctx context.Context, req facet.Request) (facet.Result, error)
	suggestFn func(ctx context.Context, req suggest.Request) ([]string, error)
	itemFn    func(ctx context.Context, key variant.Key, opts cataloguc.ItemOptions) (cataloguc.ItemView, error)
	imagesFn  func(ctx context.Context, id int64, wm int, abs bool) ([]cataloguc.ImageView, error)
	statsFn   func(ctx context.Context) (stats.Summary, error)
	regionsFn func(ctx context.Context) ([]stats.RegionCount, error)
	materials []material.Entry
}

func (m *mockCatalog) List(ctx context.Context, req listing.Request) (cataloguc.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, req)
	}
	return cataloguc.ListResult{Rows: []variant.Row{}, Pagination: req.Paginate(0), Sort: req.Sort()}, nil
}

func (m *mockCatalog) Facets(ctx context.Context, req facet.Request) (facet.Result, error) {
	if m.facetsFn != nil {
		return m.facetsFn(ctx, req)
	}
	return facet.Empty(req.Bucket()), nil
}

func (m *mockCatalog) Suggest(ctx context.Context, req suggest.Request) ([]string, error) {
	if m.suggestFn != nil {
		return m.suggestFn(ctx, req)
	}
	return []string{}, nil
}

func (m *mockCatalog) Item(
	ctx context.Context, key variant.Key, opts cataloguc.ItemOptions,
) (cataloguc.ItemView, error) {
	if m.itemFn != nil {
		return m.itemFn(ctx, key, opts)
	}
	return cataloguc.ItemView{}, domain.ErrNotFound
}

func (m *mockCatalog) Images(ctx context.Context, id int64, wm int, abs bool) ([]cataloguc.ImageView, error) {
	if m.imagesFn != nil {
		return m.imagesFn(ctx, id, wm, abs)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCatalog) Stats(ctx context.Context) (stats.Summary, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return stats.Summary{}, nil
}

func (m *mockCatalog) Regions(ctx context.Context) ([]stats.RegionCount, error) {
	if m.regionsFn != nil {
		return m.regionsFn(ctx)
	}
	return []stats.RegionCount{}, nil
}

func (m *mockCatalog) Materials() []material.Entry { return m.materials }

type limitCall struct {
	endpoint string
	ip       string
	ceiling  int
}

type mockLimiter struct {
	calls   []limitCall
	checkFn func(endpoint string, ceiling int) (ratelimituc.Decision, error)
}

func (m *mockLimiter) Check(_ context.Context, endpoint, ip string, ceiling int) (ratelimituc.Decision, error) {
	m.calls = append(m.calls, limitCall{endpoint: endpoint, ip: ip, ceiling: ceiling})
	if m.checkFn != nil {
		return m.checkFn(endpoint, ceiling)
	}
	return ratelimituc.Decision{Limit: ceiling, Remaining: ceiling - 1}, nil
}

type mockAuth struct {
	users map[string]account.User
	err   error
}

func (m *mockAuth) Authenticate(_ context.Context, token string) (account.User, error) {
	if m.err != nil {
		return account.User{}, m.err
	}
	u, ok := m.users[token]
	if !ok {
		return account.User{}, domain.ErrAuthRequired
	}
	return u, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

type testEnv struct {
	catalog *mockCatalog
	limiter *mockLimiter
	auth    *mockAuth
	health  *mockHealth
	router  http.Handler
}

func testOptions() Options {
	return Options{
		DefaultPerPage: 20,
		MaxPerPage:     100,
		Ceilings: map[string]int{
			CeilingDefault: 60,
			CeilingSearch:  30,
			CeilingFacets:  15,
			CeilingStats:   20,
		},
		Budget: filter.DefaultBudget(),
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		catalog: &mockCatalog{},
		limiter: &mockLimiter{},
		auth: &mockAuth{users: map[string]account.User{
			"pro-token":  {ID: 7, Username: "numa", Name: "Numa", Email: "numa@example.org", Tier: account.Pro},
			"free-token": {ID: 8, Username: "free", Tier: account.Free},
		}},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	r := chirouter.NewRouter()
	NewServer(env.catalog, env.limiter, env.auth, env.health, testOptions()).Mount(r)
	env.router = r
	return env
}

func (e *testEnv) get(t *testing.T, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

// firstError returns the first entry of an error envelope.
func firstError(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decode(t, rr)
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatalf("no error envelope in %s", rr.Body.String())
	}
	return errs[0].(map[string]any)
}
