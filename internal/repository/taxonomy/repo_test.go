package taxonomy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type mockStore struct {
	queryFn func(sql string, args []any) (pgx.Rows, error)
	sql     string
	args    []any
}

func (m *mockStore) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.sql, m.args = sql, args
	if m.queryFn != nil {
		return m.queryFn(sql, args)
	}
	return &idRows{}, nil
}

// idRows yields single-column int64 rows.
type idRows struct {
	ids []int64
	pos int
}

func (r *idRows) Close()                                       {}
func (r *idRows) Err() error                                   { return nil }
func (r *idRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *idRows) FieldDescriptions() []pgconn.FieldDescription { return []pgconn.FieldDescription{{Name: "id"}} }
func (r *idRows) RawValues() [][]byte                          { return nil }
func (r *idRows) Conn() *pgx.Conn                              { return nil }
func (r *idRows) Values() ([]any, error)                       { return []any{r.ids[r.pos-1]}, nil }

func (r *idRows) Next() bool {
	if r.pos >= len(r.ids) {
		return false
	}
	r.pos++
	return true
}

func (r *idRows) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.ids[r.pos-1]
	return nil
}

func TestAllowedIDs(t *testing.T) {
	ms := &mockStore{queryFn: func(string, []any) (pgx.Rows, error) {
		return &idRows{ids: []int64{16, 17, 21}}, nil
	}}
	repo := New(ms, "categories", "com_content")

	ids, err := repo.AllowedIDs(context.Background(), 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{16, 17, 21}) {
		t.Errorf("ids = %v", ids)
	}

	want := `SELECT "c"."id" AS "id" FROM "categories" AS "c" ` +
		`JOIN "categories" AS "root" ON (("c"."lft" >= "root"."lft") AND ("c"."lft" <= "root"."rgt")) ` +
		`WHERE ("root"."id" = $1) AND ("root"."published" = 1) AND ("root"."extension" = $2) ` +
		`AND ("c"."published" = 1) AND ("c"."extension" = $3) ORDER BY "c"."lft" ASC`
	if ms.sql != want {
		t.Errorf("sql mismatch\n got: %s\nwant: %s", ms.sql, want)
	}
	if !reflect.DeepEqual(ms.args, []any{int64(16), "com_content", "com_content"}) {
		t.Errorf("args = %#v", ms.args)
	}
}

func TestAllowedIDs_EmptyScope(t *testing.T) {
	repo := New(&mockStore{}, "categories", "com_content")

	ids, err := repo.AllowedIDs(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty scope, got %v", ids)
	}
}

func TestAllowedIDs_Error(t *testing.T) {
	boom := errors.New("relation does not exist")
	repo := New(&mockStore{queryFn: func(string, []any) (pgx.Rows, error) { return nil, boom }},
		"categories", "com_content")

	if _, err := repo.AllowedIDs(context.Background(), 16); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
