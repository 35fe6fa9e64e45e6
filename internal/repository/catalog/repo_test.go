package catalog

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/numistr/internal/db"
	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
)

var allowed = []int64{16, 17}

func mustFilter(t *testing.T, raw filter.Raw) filter.Set {
	t.Helper()
	f, err := filter.New(raw)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	return f
}

func countRow(total int64) func(string, []any) pgx.Row {
	return func(string, []any) pgx.Row { return fakeRow{values: []any{total}} }
}

func TestCount_ExactSQL(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryRowFn = countRow(45)

	total, err := repo.Count(context.Background(), allowed, mustFilter(t, filter.Raw{Region: "TR", Mint: "Rome"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 45 {
		t.Errorf("total = %d, want 45", total)
	}

	c := ms.lastCall(t)
	want := `SELECT COUNT(*) AS "total" FROM "numistr_variants_public_mat" AS "v" ` +
		`JOIN "content" AS "ct" ON ("ct"."id" = "v"."article_id") ` +
		`LEFT JOIN LATERAL (SELECT "fv"."value" AS "value" FROM "fields_values" AS "fv" ` +
		`WHERE ("fv"."item_id" = CAST("v"."article_id" AS TEXT)) AND ("fv"."field_id" = $1) LIMIT 1) AS "fv_mint" ON TRUE ` +
		`WHERE ("ct"."catid" = ANY($2)) AND ("ct"."state" = 1) ` +
		`AND (LOWER("v"."region_code") = LOWER($3)) ` +
		`AND (LOWER(COALESCE(NULLIF("v"."mint_name", $4), "fv_mint"."value")) = LOWER($5))`
	if c.sql != want {
		t.Errorf("sql mismatch\n got: %s\nwant: %s", c.sql, want)
	}
	wantArgs := []any{int64(4), allowed, "TR", "", "Rome"}
	if !reflect.DeepEqual(c.args, wantArgs) {
		t.Errorf("args = %#v, want %#v", c.args, wantArgs)
	}
}

func TestCount_Predicates(t *testing.T) {
	tests := []struct {
		name     string
		raw      filter.Raw
		contains []string
		absent   []string
	}{
		{
			name:     "canonical material matches every spelling",
			raw:      filter.Raw{Material: "AR", Mint: "Rome"},
			contains: []string{`(LOWER(COALESCE(NULLIF("v"."metal", $`, `"fv_mat"."value")) IN ($`},
		},
		{
			name:     "unknown material matches literally",
			raw:      filter.Raw{Material: "Billon", Mint: "Rome"},
			contains: []string{`"fv_mat"."value")) = $`},
			absent:   []string{" IN ("},
		},
		{
			name:     "wildcard mint uses like",
			raw:      filter.Raw{Mint: "Ro%"},
			contains: []string{`"fv_mint"."value")) LIKE $`, `ESCAPE '\'`},
		},
		{
			name:     "authority is substring",
			raw:      filter.Raw{Authority: "Hadrian"},
			contains: []string{`"fv_auth"."value")) LIKE $`},
		},
		{
			name: "year overlap",
			raw:  filter.Raw{YearFrom: "0", YearTo: "10"},
			contains: []string{
				`((CASE WHEN (CAST("v"."date_to" AS TEXT) ~ $`,
				`IS NULL) OR (CASE WHEN`,
				` >= $`,
				` <= $`,
			},
		},
		{
			name:     "has images",
			raw:      filter.Raw{HasImages: "1"},
			contains: []string{`EXISTS (SELECT 1 FROM "coins_images" AS "ci" WHERE ("ci"."coin_id" = "v"."article_id") AND ("ci"."image_id" > 0))`},
		},
		{
			name:   "no filters joins nothing extra",
			raw:    filter.Raw{},
			absent: []string{"LATERAL", "EXISTS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ms := newTestRepo(t)
			ms.queryRowFn = countRow(1)

			if _, err := repo.Count(context.Background(), allowed, mustFilter(t, tt.raw)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			sql := ms.lastCall(t).sql
			for _, s := range tt.contains {
				if !strings.Contains(sql, s) {
					t.Errorf("sql missing %q\n%s", s, sql)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(sql, s) {
					t.Errorf("sql unexpectedly contains %q\n%s", s, sql)
				}
			}
		})
	}
}

func TestCount_MaterialArgs(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryRowFn = countRow(1)

	if _, err := repo.Count(context.Background(), allowed, mustFilter(t, filter.Raw{Material: "Gümüş"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := ms.lastCall(t).args
	tail := args[len(args)-4:]
	want := []any{"silver", "ar", "gümüş", "gumus"}
	if !reflect.DeepEqual(tail, want) {
		t.Errorf("material args = %#v, want %#v", tail, want)
	}
}

func TestSchema_NoAttributeTableDegrades(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.tableExistsFn = func(_ context.Context, name string) (bool, error) {
		return name == "numistr_variants_public_mat", nil
	}
	ms.queryRowFn = countRow(1)

	f := mustFilter(t, filter.Raw{Mint: "Rome", Material: "silver"})
	if _, err := repo.Count(context.Background(), allowed, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql := ms.lastCall(t).sql
	if strings.Contains(sql, "LATERAL") {
		t.Errorf("expected primary columns only, got %s", sql)
	}
	if !strings.Contains(sql, `(LOWER("v"."mint_name") = LOWER($`) {
		t.Errorf("expected plain mint column, got %s", sql)
	}
}

func TestSchema_FallbackVariantTable(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.tableExistsFn = func(context.Context, string) (bool, error) { return false, nil }
	ms.queryRowFn = countRow(1)

	if _, err := repo.Count(context.Background(), allowed, filter.Set{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ms.lastCall(t).sql, `FROM "numistr_variants_public" AS "v"`) {
		t.Errorf("expected fallback table, got %s", ms.lastCall(t).sql)
	}
	// Last variant candidate is never probed.
	want := []string{"numistr_variants_public_mat", "fields_values", "fields_value"}
	if !reflect.DeepEqual(ms.probes, want) {
		t.Errorf("probes = %v, want %v", ms.probes, want)
	}
}

func TestSchema_ResolvedOnce(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryRowFn = countRow(1)

	for i := 0; i < 3; i++ {
		if _, err := repo.Count(context.Background(), allowed, filter.Set{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(ms.probes) != 2 {
		t.Errorf("probes = %v, want one per table kind", ms.probes)
	}
}

func TestSchema_ProbeErrorNotCached(t *testing.T) {
	repo, ms := newTestRepo(t)
	fail := true
	ms.tableExistsFn = func(context.Context, string) (bool, error) {
		if fail {
			return false, &db.Error{Op: db.OpTableExists, Err: errors.New("conn reset")}
		}
		return true, nil
	}
	ms.queryRowFn = countRow(1)

	if _, err := repo.Count(context.Background(), allowed, filter.Set{}); err == nil {
		t.Fatal("expected probe error")
	}
	fail = false
	if _, err := repo.Count(context.Background(), allowed, filter.Set{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryFn = func(string, []any) (pgx.Rows, error) {
		return newRows([]string{"article_id", "uid", "material_value"},
			[]any{int64(1), "ntr:var:00000001", "AR"},
			[]any{int64(2), "ntr:var:00000002", nil},
		), nil
	}

	req := listing.New(mustFilter(t, filter.Raw{Mint: "Rome"}), listing.UpdatedAtDesc, 3, 20, 100, false)
	rows, err := repo.List(context.Background(), allowed, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].String("uid") != "ntr:var:00000001" || rows[1].String("material_value") != "" {
		t.Errorf("unexpected rows %#v", rows)
	}

	sql := ms.lastCall(t).sql
	for _, s := range []string{
		`SELECT "v".*, `,
		`AS "material_value"`,
		`AS "mint_value"`,
		`AS "authority_value"`,
		`ORDER BY "v"."updated_at" DESC, "v"."uid" ASC LIMIT 20 OFFSET 40`,
	} {
		if !strings.Contains(sql, s) {
			t.Errorf("sql missing %q\n%s", s, sql)
		}
	}
}

func TestList_QueryError(t *testing.T) {
	repo, ms := newTestRepo(t)
	boom := &db.Error{Op: db.OpQuery, Err: errors.New("canceling statement due to statement timeout")}
	ms.queryFn = func(string, []any) (pgx.Rows, error) { return nil, boom }

	_, err := repo.List(context.Background(), allowed, listing.New(filter.Set{}, listing.UIDAsc, 1, 20, 100, false))
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestFacet(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryFn = func(string, []any) (pgx.Rows, error) {
		return newRows([]string{"name", "cnt"}, []any{"rome", int64(12)}, []any{"antioch", int64(3)}), nil
	}

	counts, err := repo.Facet(context.Background(), allowed, mustFilter(t, filter.Raw{Mint: "Rome"}), facet.Mint, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []facet.Count{{Name: "rome", Count: 12}, {Name: "antioch", Count: 3}}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}

	sql := ms.lastCall(t).sql
	if !strings.HasPrefix(sql, `SELECT LOWER(COALESCE(NULLIF("v"."mint_name", $`) {
		t.Errorf("unexpected select list: %s", sql)
	}
	if !strings.HasSuffix(sql, `GROUP BY 1 ORDER BY "cnt" DESC, "name" ASC LIMIT 15`) {
		t.Errorf("unexpected tail: %s", sql)
	}
	if n := strings.Count(sql, `AS "fv_mint"`); n != 1 {
		t.Errorf("mint lateral joined %d times", n)
	}
}

func TestFacet_MaterialFoldsBeforeLimit(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryFn = func(string, []any) (pgx.Rows, error) {
		return newRows([]string{"name", "cnt"}, []any{"silver", int64(5)}, []any{"bronze", int64(3)}), nil
	}

	counts, err := repo.Facet(context.Background(), allowed, filter.Set{}, facet.Material, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []facet.Count{{Name: "silver", Count: 5}, {Name: "bronze", Count: 3}}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}

	c := ms.lastCall(t)
	value := `LOWER(COALESCE(NULLIF("v"."metal", $`
	if !strings.HasPrefix(c.sql, `SELECT CASE WHEN (`+value) {
		t.Errorf("material must be folded in the select list: %s", c.sql)
	}
	for _, s := range []string{
		`"fv_mat"."value")) LIKE $`,
		`ELSE ` + value,
		`END AS "name"`,
	} {
		if !strings.Contains(c.sql, s) {
			t.Errorf("sql missing %q\n%s", s, c.sql)
		}
	}
	if !strings.HasSuffix(c.sql, `GROUP BY 1 ORDER BY "cnt" DESC, "name" ASC LIMIT 2`) {
		t.Errorf("limit must follow grouping on the folded value: %s", c.sql)
	}

	// Short codes come first: ae -> bronze, then ar -> silver.
	wantHead := []any{"", "ae", "bronze", "", "ar", "silver"}
	if len(c.args) < len(wantHead) || !reflect.DeepEqual(c.args[:len(wantHead)], wantHead) {
		t.Errorf("leading args = %#v, want %#v", c.args, wantHead)
	}
}

func TestFacet_MintNotFolded(t *testing.T) {
	repo, ms := newTestRepo(t)

	if _, err := repo.Facet(context.Background(), allowed, filter.Set{}, facet.Mint, 15); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sql := ms.lastCall(t).sql; strings.Contains(sql, "CASE") {
		t.Errorf("mint facet must group by the plain folded value: %s", sql)
	}
}

func TestYearHistogram(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryFn = func(string, []any) (pgx.Rows, error) {
		return newRows([]string{"bucket", "cnt"}, []any{int64(-100), int64(4)}, []any{int64(0), int64(9)}), nil
	}

	buckets, err := repo.YearHistogram(context.Background(), allowed, filter.Set{}, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []facet.Bucket{{Start: -100, Width: 50, Count: 4}, {Start: 0, Width: 50, Count: 9}}
	if !reflect.DeepEqual(buckets, want) {
		t.Errorf("buckets = %v, want %v", buckets, want)
	}

	sql := ms.lastCall(t).sql
	for _, s := range []string{
		`CAST((FLOOR((CAST(COALESCE(`,
		`AS NUMERIC) / 50)) * 50) AS BIGINT) AS "bucket"`,
		`GROUP BY 1 ORDER BY "bucket" ASC`,
	} {
		if !strings.Contains(sql, s) {
			t.Errorf("sql missing %q\n%s", s, sql)
		}
	}
	if strings.Contains(sql, "LIMIT") {
		t.Errorf("histogram must not be limited: %s", sql)
	}
}

func TestYearHistogram_InvalidWidth(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.YearHistogram(context.Background(), allowed, filter.Set{}, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestSuggest(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryFn = func(string, []any) (pgx.Rows, error) {
		return newRows([]string{"name", "cnt"}, []any{"hadrian", int64(40)}, []any{"hadrianus", int64(2)}), nil
	}

	names, err := repo.Suggest(context.Background(), allowed, facet.Authority, "Had_", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"hadrian", "hadrianus"}) {
		t.Errorf("names = %v", names)
	}

	c := ms.lastCall(t)
	if !strings.Contains(c.sql, `"fv_auth"."value")) LIKE $`) || !strings.HasSuffix(c.sql, "LIMIT 10") {
		t.Errorf("unexpected sql: %s", c.sql)
	}
	if got := c.args[len(c.args)-1]; got != `%had\_%` {
		t.Errorf("pattern = %v, want escaped substring", got)
	}
}

func TestFindByKey(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		contains string
	}{
		{"numeric", "42", `ORDER BY CASE WHEN ("v"."article_id" = $`},
		{"uid", "ntr:var:00000042", `("v"."uid" = $`},
		{"slug", "hadrian-denarius", `("v"."slug" = $`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ms := newTestRepo(t)
			ms.queryFn = func(string, []any) (pgx.Rows, error) {
				return newRows([]string{"article_id", "slug"}, []any{int64(42), "hadrian-denarius"}), nil
			}
			key, err := variant.ParseKey(tt.token)
			if err != nil {
				t.Fatalf("ParseKey: %v", err)
			}
			row, err := repo.FindByKey(context.Background(), allowed, key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if row.Int64("article_id") != 42 {
				t.Errorf("unexpected row %v", row)
			}
			c := ms.lastCall(t)
			if !strings.Contains(c.sql, tt.contains) || !strings.HasSuffix(c.sql, "LIMIT 1") {
				t.Errorf("unexpected sql: %s", c.sql)
			}
		})
	}
}

func TestFindByKey_NumericArgs(t *testing.T) {
	repo, ms := newTestRepo(t)
	key, _ := variant.ParseKey("42")
	_, _ = repo.FindByKey(context.Background(), allowed, key)

	args := ms.lastCall(t).args
	var sawUID, sawSlug bool
	for _, a := range args {
		switch a {
		case "ntr:var:00000042":
			sawUID = true
		case "42":
			sawSlug = true
		}
	}
	if !sawUID || !sawSlug {
		t.Errorf("expected uid and slug candidates in args %v", args)
	}
}

func TestFindByKey_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	key, _ := variant.ParseKey("missing-slug")

	_, err := repo.FindByKey(context.Background(), allowed, key)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExists(t *testing.T) {
	repo, ms := newTestRepo(t)

	ok, err := repo.Exists(context.Background(), allowed, 7)
	if err != nil || ok {
		t.Fatalf("missing row: got %v, %v", ok, err)
	}

	ms.queryRowFn = func(string, []any) pgx.Row { return fakeRow{values: []any{int64(1)}} }
	ok, err = repo.Exists(context.Background(), allowed, 7)
	if err != nil || !ok {
		t.Fatalf("present row: got %v, %v", ok, err)
	}

	ms.queryRowFn = func(string, []any) pgx.Row { return fakeRow{err: &db.Error{Op: db.OpScan, Err: errors.New("x")}} }
	if _, err := repo.Exists(context.Background(), allowed, 7); err == nil {
		t.Fatal("expected error")
	}
}

func TestImages(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryFn = func(string, []any) (pgx.Rows, error) {
		return newRows([]string{"image_id", "image_type", "weight", "diameter", "ordering"},
			[]any{int64(10), "obv", "3.21", nil, int64(1)},
			[]any{int64(11), "rev", nil, "19", nil},
		), nil
	}

	images, err := repo.Images(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images", len(images))
	}
	if images[0].ImageID != 10 || *images[0].Type != "obv" || images[0].Diameter != nil || *images[0].Ordering != 1 {
		t.Errorf("unexpected first image %+v", images[0])
	}
	if images[1].VariantID != 42 || images[1].Ordering != nil || *images[1].Diameter != "19" {
		t.Errorf("unexpected second image %+v", images[1])
	}

	c := ms.lastCall(t)
	if !strings.HasSuffix(c.sql, `ORDER BY "ci"."ordering" ASC, "ci"."image_id" ASC`) {
		t.Errorf("unexpected order: %s", c.sql)
	}
	if strings.Contains(c.sql, `"ct"`) {
		t.Errorf("images query must not be scoped: %s", c.sql)
	}
}

func TestRegions(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryFn = func(string, []any) (pgx.Rows, error) {
		return newRows([]string{"code", "cnt"}, []any{"ionia", int64(5)}, []any{"lydia", int64(2)}), nil
	}

	regions, err := repo.Regions(context.Background(), allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []stats.RegionCount{{Code: "ionia", Count: 5}, {Code: "lydia", Count: 2}}
	if !reflect.DeepEqual(regions, want) {
		t.Errorf("regions = %v, want %v", regions, want)
	}
	if !strings.HasSuffix(ms.lastCall(t).sql, `GROUP BY 1 ORDER BY "code" ASC`) {
		t.Errorf("unexpected sql: %s", ms.lastCall(t).sql)
	}
}

func TestStats(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.queryRowFn = func(string, []any) pgx.Row {
		return fakeRow{values: []any{int64(100), int64(60), int64(8), int64(20), int64(30), int64(-550), nil}}
	}

	s, err := repo.Stats(context.Background(), allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Variants != 100 || s.WithImages != 60 || s.Regions != 8 || s.Mints != 20 || s.Authorities != 30 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.MinYear == nil || *s.MinYear != -550 || s.MaxYear != nil {
		t.Errorf("unexpected years %v %v", s.MinYear, s.MaxYear)
	}
}
