// Package catalog runs scoped variant queries: listing, facets, suggestions, lookups and aggregates.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/numistr/internal/db"
	"github.com/kailas-cloud/numistr/internal/db/sqlq"
	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/stats"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
)

// store is the consumer interface for catalog queries (ISP).
type store interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	TableExists(ctx context.Context, name string) (bool, error)
}

// Config names the physical schema.
type Config struct {
	VariantTables   []string // candidates, first existing wins, last is the fallback
	AttributeTables []string // candidates, none existing disables attribute fallback
	ContentTable    string
	ImageTable      string
	FieldIDs        map[string]int64
}

// Repo implements usecase/catalog.Repository.
type Repo struct {
	store     store
	cfg       Config
	materials materialMatch
	logger    *zap.Logger
	resolver  resolver
}

// New creates a catalog repository.
func New(s store, cfg Config, materials materialMatch, logger *zap.Logger) *Repo {
	return &Repo{store: s, cfg: cfg, materials: materials, logger: logger}
}

// scoped resolves the schema and starts a filtered query.
func (r *Repo) scoped(ctx context.Context, allowed []int64, f filter.Set) (*query, error) {
	s, err := r.schema(ctx)
	if err != nil {
		return nil, err
	}
	q := r.newQuery(s, allowed)
	q.apply(f, r.materials)
	return q, nil
}

// Count returns the number of visible variants matching f.
func (r *Repo) Count(ctx context.Context, allowed []int64, f filter.Set) (int64, error) {
	q, err := r.scoped(ctx, allowed, f)
	if err != nil {
		return 0, err
	}
	q.sel.Column(sqlq.CountAll, "total")

	var total int64
	if err := r.queryRow(ctx, q.sel, &total); err != nil {
		return 0, fmt.Errorf("count variants: %w", err)
	}
	return total, nil
}

// List returns one sorted page of variant rows, including the effective text field values.
func (r *Repo) List(ctx context.Context, allowed []int64, req listing.Request) ([]variant.Row, error) {
	q, err := r.scoped(ctx, allowed, req.Filters())
	if err != nil {
		return nil, err
	}
	q.sel.Star(aliasVariant).
		Column(q.value(facet.Material), "material_value").
		Column(q.value(facet.Mint), "mint_value").
		Column(q.value(facet.Authority), "authority_value").
		Limit(req.PerPage()).
		Offset(req.Offset())
	order(q.sel, req.Sort())

	rows, err := r.queryRows(ctx, q.sel)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return rows, nil
}

// Facet returns the most frequent case-folded values of a text dimension under f.
// Material values are folded onto canonical names before grouping, so the limit applies to merged counts.
func (r *Repo) Facet(
	ctx context.Context, allowed []int64, f filter.Set, field facet.Dimension, limit int,
) ([]facet.Count, error) {
	if _, ok := fieldSources[field]; !ok {
		return nil, fmt.Errorf("facet: unsupported dimension %q", field)
	}
	q, err := r.scoped(ctx, allowed, f)
	if err != nil {
		return nil, err
	}
	value := sqlq.Lower(q.value(field))
	if field == facet.Material {
		value = canonicalMaterial(value, r.materials.Rules())
	}
	grouped(q, field, value, limit)

	counts, err := r.queryCounts(ctx, q.sel)
	if err != nil {
		return nil, fmt.Errorf("facet %s: %w", field, err)
	}
	return counts, nil
}

// YearHistogram counts variants per year bucket of the given width, ordered by bucket start.
// Variants without a plain integer year are not counted.
func (r *Repo) YearHistogram(
	ctx context.Context, allowed []int64, f filter.Set, width int,
) ([]facet.Bucket, error) {
	if width < 1 {
		return nil, fmt.Errorf("year histogram: invalid width %d", width)
	}
	q, err := r.scoped(ctx, allowed, f)
	if err != nil {
		return nil, err
	}
	y := effectiveYear()
	w := sqlq.Int(int64(width))
	bucket := sqlq.Cast(sqlq.Mul(sqlq.Floor(sqlq.Div(sqlq.Cast(y, sqlq.Numeric), w)), w), sqlq.BigInt)
	q.sel.Column(bucket, "bucket").
		Column(sqlq.CountAll, "cnt").
		Where(sqlq.IsNotNull(y)).
		GroupBy(1).
		OrderBy(sqlq.Name("bucket"), false)

	sql, args, err := q.sel.Build()
	if err != nil {
		return nil, fmt.Errorf("year histogram: %w", err)
	}
	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("year histogram: %w", err)
	}
	buckets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (facet.Bucket, error) {
		b := facet.Bucket{Width: width}
		err := row.Scan(&b.Start, &b.Count)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("year histogram: %w", &db.Error{Op: db.OpScan, Err: err})
	}
	return buckets, nil
}

// Suggest returns up to limit values of a text dimension containing text, most frequent first.
func (r *Repo) Suggest(
	ctx context.Context, allowed []int64, field facet.Dimension, text string, limit int,
) ([]string, error) {
	if _, ok := fieldSources[field]; !ok {
		return nil, fmt.Errorf("suggest: unsupported dimension %q", field)
	}
	q, err := r.scoped(ctx, allowed, filter.Set{})
	if err != nil {
		return nil, err
	}
	value := sqlq.Lower(q.value(field))
	grouped(q, field, value, limit)
	q.sel.Where(sqlq.Like(value, sqlq.Contains(strings.ToLower(text))))

	counts, err := r.queryCounts(ctx, q.sel)
	if err != nil {
		return nil, fmt.Errorf("suggest %s: %w", field, err)
	}
	names := make([]string, len(counts))
	for i, c := range counts {
		names[i] = c.Name
	}
	return names, nil
}

// grouped turns q into a name/cnt aggregate of value over the non-empty values of field.
func grouped(q *query, field facet.Dimension, value sqlq.Expr, limit int) {
	q.sel.Column(value, "name").
		Column(sqlq.CountAll, "cnt").
		Where(nonEmpty(q.value(field))).
		GroupBy(1).
		OrderBy(sqlq.Name("cnt"), true).
		OrderBy(sqlq.Name("name"), false).
		Limit(limit)
}

// FindByKey returns the visible variant matching key.
// Numeric keys match article_id first, then the derived uid, then slug.
func (r *Repo) FindByKey(ctx context.Context, allowed []int64, key variant.Key) (variant.Row, error) {
	q, err := r.scoped(ctx, allowed, filter.Set{})
	if err != nil {
		return nil, err
	}
	id := sqlq.Col(aliasVariant, "article_id")
	uid := sqlq.Col(aliasVariant, "uid")
	slug := sqlq.Col(aliasVariant, "slug")

	q.sel.Star(aliasVariant).
		Column(q.value(facet.Material), "material_value").
		Column(q.value(facet.Mint), "mint_value").
		Column(q.value(facet.Authority), "authority_value").
		Limit(1)

	switch key.Kind() {
	case variant.ByNumber:
		byID := sqlq.Eq(id, sqlq.Param(key.ID()))
		byUID := sqlq.Eq(uid, sqlq.Param(key.UID()))
		q.sel.Where(sqlq.Or(byID, byUID, sqlq.Eq(slug, sqlq.Param(key.Token())))).
			OrderBy(sqlq.CaseWhen(byID, sqlq.Int(0), sqlq.CaseWhen(byUID, sqlq.Int(1), sqlq.Int(2))), false)
	case variant.ByUID:
		q.sel.Where(sqlq.Eq(uid, sqlq.Param(key.Token())))
	default:
		q.sel.Where(sqlq.Eq(slug, sqlq.Param(key.Token())))
	}

	rows, err := r.queryRows(ctx, q.sel)
	if err != nil {
		return nil, fmt.Errorf("find variant %s: %w", key.Token(), err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("variant %s: %w", key.Token(), domain.ErrNotFound)
	}
	return rows[0], nil
}

// Exists reports whether article id is a visible variant.
func (r *Repo) Exists(ctx context.Context, allowed []int64, id int64) (bool, error) {
	q, err := r.scoped(ctx, allowed, filter.Set{})
	if err != nil {
		return false, err
	}
	q.sel.Column(sqlq.Int(1), "one").
		Where(sqlq.Eq(sqlq.Col(aliasVariant, "article_id"), sqlq.Param(id))).
		Limit(1)

	var one int64
	err = r.queryRow(ctx, q.sel, &one)
	switch {
	case errors.Is(err, db.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("variant exists %d: %w", id, err)
	}
	return true, nil
}

// Images returns the stored images of a variant in display order.
func (r *Repo) Images(ctx context.Context, variantID int64) ([]variant.Image, error) {
	col := func(name string) sqlq.Expr { return sqlq.Col(aliasImage, name) }
	sel := sqlq.From(r.cfg.ImageTable, aliasImage).
		Column(col("image_id"), "image_id").
		Column(sqlq.Cast(col("image_type"), sqlq.Text), "image_type").
		Column(sqlq.Cast(col("weight"), sqlq.Text), "weight").
		Column(sqlq.Cast(col("diameter"), sqlq.Text), "diameter").
		Column(sqlq.Cast(col("ordering"), sqlq.BigInt), "ordering").
		Where(
			sqlq.Eq(col("coin_id"), sqlq.Param(variantID)),
			sqlq.Gt(col("image_id"), sqlq.Int(0)),
		).
		OrderBy(col("ordering"), false).
		OrderBy(col("image_id"), false)

	sql, args, err := sel.Build()
	if err != nil {
		return nil, fmt.Errorf("images %d: %w", variantID, err)
	}
	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("images %d: %w", variantID, err)
	}
	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (variant.Image, error) {
		img := variant.Image{VariantID: variantID}
		err := row.Scan(&img.ImageID, &img.Type, &img.Weight, &img.Diameter, &img.Ordering)
		return img, err
	})
	if err != nil {
		return nil, fmt.Errorf("images %d: %w", variantID, &db.Error{Op: db.OpScan, Err: err})
	}
	return images, nil
}

// Regions returns region codes with variant counts, ordered by code.
func (r *Repo) Regions(ctx context.Context, allowed []int64) ([]stats.RegionCount, error) {
	q, err := r.scoped(ctx, allowed, filter.Set{})
	if err != nil {
		return nil, err
	}
	region := sqlq.Col(aliasVariant, "region_code")
	q.sel.Column(region, "code").
		Column(sqlq.CountAll, "cnt").
		Where(nonEmpty(region)).
		GroupBy(1).
		OrderBy(sqlq.Name("code"), false)

	counts, err := r.queryCounts(ctx, q.sel)
	if err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}
	out := make([]stats.RegionCount, len(counts))
	for i, c := range counts {
		out[i] = stats.RegionCount{Code: c.Name, Count: c.Count}
	}
	return out, nil
}

// Stats computes catalog-wide aggregates in one pass.
func (r *Repo) Stats(ctx context.Context, allowed []int64) (stats.Summary, error) {
	q, err := r.scoped(ctx, allowed, filter.Set{})
	if err != nil {
		return stats.Summary{}, err
	}
	distinctLower := func(e sqlq.Expr) sqlq.Expr {
		return sqlq.CountDistinct(sqlq.Lower(sqlq.NullIf(e, sqlq.Param(""))))
	}
	y := effectiveYear()
	q.sel.Column(sqlq.CountAll, "variants").
		Column(sqlq.CountDistinct(sqlq.CaseWhen(q.hasImages(), sqlq.Col(aliasVariant, "article_id"), nil)), "with_images").
		Column(distinctLower(sqlq.Col(aliasVariant, "region_code")), "regions").
		Column(distinctLower(q.value(facet.Mint)), "mints").
		Column(distinctLower(q.value(facet.Authority)), "authorities").
		Column(sqlq.Min(y), "min_year").
		Column(sqlq.Max(y), "max_year")

	var s stats.Summary
	if err := r.queryRow(ctx, q.sel, &s.Variants, &s.WithImages, &s.Regions, &s.Mints, &s.Authorities,
		&s.MinYear, &s.MaxYear); err != nil {
		return stats.Summary{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

func (r *Repo) queryRow(ctx context.Context, sel *sqlq.Select, dest ...any) error {
	sql, args, err := sel.Build()
	if err != nil {
		return err
	}
	r.logger.Debug("catalog query", zap.String("sql", sql))
	return r.store.QueryRow(ctx, sql, args...).Scan(dest...)
}

func (r *Repo) queryRows(ctx context.Context, sel *sqlq.Select) ([]variant.Row, error) {
	sql, args, err := sel.Build()
	if err != nil {
		return nil, err
	}
	r.logger.Debug("catalog query", zap.String("sql", sql))
	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	out := make([]variant.Row, len(maps))
	for i, m := range maps {
		out[i] = variant.Row(m)
	}
	return out, nil
}

func (r *Repo) queryCounts(ctx context.Context, sel *sqlq.Select) ([]facet.Count, error) {
	sql, args, err := sel.Build()
	if err != nil {
		return nil, err
	}
	r.logger.Debug("catalog query", zap.String("sql", sql))
	rows, err := r.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (facet.Count, error) {
		var c facet.Count
		err := row.Scan(&c.Name, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return counts, nil
}
