package catalog

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/kailas-cloud/numistr/internal/db"
	"github.com/kailas-cloud/numistr/internal/domain/material"
)

type call struct {
	sql  string
	args []any
}

// mockStore implements the consumer interface for tests.
type mockStore struct {
	queryFn       func(sql string, args []any) (pgx.Rows, error)
	queryRowFn    func(sql string, args []any) pgx.Row
	tableExistsFn func(ctx context.Context, name string) (bool, error)

	calls  []call
	probes []string
}

func (m *mockStore) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.calls = append(m.calls, call{sql: sql, args: args})
	if m.queryFn != nil {
		return m.queryFn(sql, args)
	}
	return &fakeRows{}, nil
}

func (m *mockStore) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.calls = append(m.calls, call{sql: sql, args: args})
	if m.queryRowFn != nil {
		return m.queryRowFn(sql, args)
	}
	return fakeRow{err: db.ErrNoRows}
}

func (m *mockStore) TableExists(ctx context.Context, name string) (bool, error) {
	m.probes = append(m.probes, name)
	if m.tableExistsFn != nil {
		return m.tableExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) lastCall(t *testing.T) call {
	t.Helper()
	if len(m.calls) == 0 {
		t.Fatal("no query was run")
	}
	return m.calls[len(m.calls)-1]
}

// fakeRow returns fixed values or an error from Scan.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

// fakeRows iterates over in-memory rows.
type fakeRows struct {
	columns []string
	rows    [][]any
	pos     int
	err     error
}

func newRows(columns []string, rows ...[]any) *fakeRows {
	return &fakeRows{columns: columns, rows: rows}
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) == 1 {
		if rs, ok := dest[0].(pgx.RowScanner); ok {
			return rs.ScanRow(r)
		}
	}
	return scanInto(r.rows[r.pos-1], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

// scanInto assigns values to pointer destinations, allocating for pointer-to-pointer targets.
func scanInto(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		dv := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		vv := reflect.ValueOf(v)
		if dv.Kind() == reflect.Pointer && vv.Kind() != reflect.Pointer {
			p := reflect.New(dv.Type().Elem())
			p.Elem().Set(vv.Convert(dv.Type().Elem()))
			dv.Set(p)
			continue
		}
		dv.Set(vv.Convert(dv.Type()))
	}
	return nil
}

func testMaterials() *material.Normalizer {
	return material.NewNormalizer(material.Table{
		ShortCodes: map[string]string{"ar": material.Silver, "ae": material.Bronze},
		Variants: map[string][]string{
			material.Silver: {"silver", "ar", "gümüş", "gumus"},
			material.Bronze: {"bronze", "ae", "bronz", "cu"},
		},
		Stems: material.DefaultStems(),
	})
}

func testConfig() Config {
	return Config{
		VariantTables:   []string{"numistr_variants_public_mat", "numistr_variants_public"},
		AttributeTables: []string{"fields_values", "fields_value"},
		ContentTable:    "content",
		ImageTable:      "coins_images",
		FieldIDs:        map[string]int64{"material": 23, "mint_name": 4, "authority_name": 2},
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testConfig(), testMaterials(), zap.NewNop()), ms
}
