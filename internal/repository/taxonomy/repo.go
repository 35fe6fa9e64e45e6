// Package taxonomy resolves the category scope variants are visible in.
package taxonomy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/numistr/internal/db"
	"github.com/kailas-cloud/numistr/internal/db/sqlq"
)

// store is the consumer interface for category queries (ISP).
type store interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repo reads the nested-set category tree.
type Repo struct {
	store     store
	table     string
	extension string
}

// New creates a taxonomy repository over the categories table.
func New(s store, table, extension string) *Repo {
	return &Repo{store: s, table: table, extension: extension}
}

// AllowedIDs returns the published categories under rootID, root included, in tree order.
// An unpublished or missing root yields an empty scope.
func (r *Repo) AllowedIDs(ctx context.Context, rootID int64) ([]int64, error) {
	c := func(name string) sqlq.Expr { return sqlq.Col("c", name) }
	root := func(name string) sqlq.Expr { return sqlq.Col("root", name) }

	sel := sqlq.From(r.table, "c").
		Column(c("id"), "id").
		Join(r.table, "root", sqlq.And(
			sqlq.Ge(c("lft"), root("lft")),
			sqlq.Le(c("lft"), root("rgt")),
		)).
		Where(
			sqlq.Eq(root("id"), sqlq.Param(rootID)),
			sqlq.Eq(root("published"), sqlq.Int(1)),
			sqlq.Eq(root("extension"), sqlq.Param(r.extension)),
			sqlq.Eq(c("published"), sqlq.Int(1)),
			sqlq.Eq(c("extension"), sqlq.Param(r.extension)),
		).
		OrderBy(c("lft"), false)

	sql, args, err := sel.Build()
	if err != nil {
		return nil, fmt.Errorf("allowed categories: %w", err)
	}
	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("allowed categories under %d: %w", rootID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("allowed categories under %d: %w", rootID, &db.Error{Op: db.OpScan, Err: err})
	}
	return ids, nil
}
