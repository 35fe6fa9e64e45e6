package catalog

import (
	"strings"

	"github.com/kailas-cloud/numistr/internal/db/sqlq"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/material"
)

// Table aliases.
const (
	aliasVariant = "v"
	aliasContent = "ct"
	aliasImage   = "ci"
	aliasAttr    = "fv"
)

// yearPattern accepts stored years that are plain signed integers.
const yearPattern = `^-?[0-9]+$`

type fieldSource struct {
	column  string // primary column on the variants projection
	attrKey string // key in catalog.field_ids
	alias   string // lateral join alias
}

// fieldSources maps text dimensions to a primary column with an attribute-store fallback.
var fieldSources = map[facet.Dimension]fieldSource{
	facet.Material:  {column: "metal", attrKey: "material", alias: "fv_mat"},
	facet.Mint:      {column: "mint_name", attrKey: "mint_name", alias: "fv_mint"},
	facet.Authority: {column: "authority_name", attrKey: "authority_name", alias: "fv_auth"},
}

// query is a scoped SELECT over visible variants plus the attribute joins its expressions need.
type query struct {
	sel      *sqlq.Select
	schema   schema
	fieldIDs map[string]int64
	images   string
}

// newQuery starts a query over variants whose content row is published in an allowed category.
func (r *Repo) newQuery(s schema, allowed []int64) *query {
	sel := sqlq.From(s.variants, aliasVariant).
		Join(r.cfg.ContentTable, aliasContent,
			sqlq.Eq(sqlq.Col(aliasContent, "id"), sqlq.Col(aliasVariant, "article_id"))).
		Where(
			sqlq.Any(sqlq.Col(aliasContent, "catid"), allowed),
			sqlq.Eq(sqlq.Col(aliasContent, "state"), sqlq.Int(1)),
		)
	return &query{sel: sel, schema: s, fieldIDs: r.cfg.FieldIDs, images: r.cfg.ImageTable}
}

// attributeID returns the attribute-store field id for key, ok=false when the store is unusable for it.
func (q *query) attributeID(key string) (int64, bool) {
	if q.schema.attributes == "" {
		return 0, false
	}
	id, ok := q.fieldIDs[key]
	return id, ok && id > 0
}

// value returns the effective value of d: the primary column when non-empty, else the attribute value.
// Without a resolvable attribute id only the primary column is used.
func (q *query) value(d facet.Dimension) sqlq.Expr {
	src := fieldSources[d]
	primary := sqlq.Col(aliasVariant, src.column)

	id, ok := q.attributeID(src.attrKey)
	if !ok {
		return primary
	}
	if !q.sel.HasJoin(src.alias) {
		sub := sqlq.From(q.schema.attributes, aliasAttr).
			Column(sqlq.Col(aliasAttr, "value"), "value").
			Where(
				sqlq.Eq(sqlq.Col(aliasAttr, "item_id"), sqlq.Cast(sqlq.Col(aliasVariant, "article_id"), sqlq.Text)),
				sqlq.Eq(sqlq.Col(aliasAttr, "field_id"), sqlq.Param(id)),
			).
			Limit(1)
		q.sel.LeftJoinLateral(sub, src.alias)
	}
	return sqlq.Coalesce(sqlq.NullIf(primary, sqlq.Param("")), sqlq.Col(src.alias, "value"))
}

// year returns a stored year column as BIGINT, NULL when it is not a plain integer.
func year(column string) sqlq.Expr {
	text := sqlq.Cast(sqlq.Col(aliasVariant, column), sqlq.Text)
	return sqlq.CaseWhen(sqlq.Matches(text, yearPattern), sqlq.Cast(text, sqlq.BigInt), nil)
}

// effectiveYear is date_from, else date_to.
func effectiveYear() sqlq.Expr {
	return sqlq.Coalesce(year("date_from"), year("date_to"))
}

// hasImages tests for at least one stored image.
func (q *query) hasImages() sqlq.Expr {
	sub := sqlq.From(q.images, aliasImage).
		Column(sqlq.Int(1), "").
		Where(
			sqlq.Eq(sqlq.Col(aliasImage, "coin_id"), sqlq.Col(aliasVariant, "article_id")),
			sqlq.Gt(sqlq.Col(aliasImage, "image_id"), sqlq.Int(0)),
		)
	return sqlq.Exists(sub)
}

// materialMatch turns a material filter into the set of stored spellings to accept.
type materialMatch interface {
	Normalize(raw string) (string, bool)
	IsCanonical(value string) bool
	VariantsFor(canonical string) []string
	Rules() []material.Rule
}

// canonicalMaterial folds a lowercased material value onto its canonical name.
// Values no rule matches are kept, so unknown materials still group by their own spelling.
func canonicalMaterial(value sqlq.Expr, rules []material.Rule) sqlq.Expr {
	whens := make([]sqlq.When, 0, len(rules))
	for _, rule := range rules {
		conds := make([]sqlq.Expr, 0, 1+len(rule.Stems))
		if len(rule.Exact) > 0 {
			conds = append(conds, sqlq.In(value, rule.Exact...))
		}
		for _, stem := range rule.Stems {
			conds = append(conds, sqlq.Like(value, sqlq.Contains(stem)))
		}
		if len(conds) == 0 {
			continue
		}
		whens = append(whens, sqlq.When{Cond: sqlq.Or(conds...), Then: sqlq.Param(rule.Canonical)})
	}
	return sqlq.Case(value, whens...)
}

// apply adds one predicate per active filter.
func (q *query) apply(f filter.Set, materials materialMatch) {
	if region := f.Region(); region != "" {
		q.sel.Where(sqlq.Eq(sqlq.Lower(sqlq.Col(aliasVariant, "region_code")), sqlq.Lower(sqlq.Param(region))))
	}

	if canonical, ok := materials.Normalize(f.Material()); ok {
		value := sqlq.Lower(q.value(facet.Material))
		if materials.IsCanonical(canonical) {
			q.sel.Where(sqlq.In(value, materials.VariantsFor(canonical)...))
		} else {
			q.sel.Where(sqlq.Eq(value, sqlq.Param(canonical)))
		}
	}

	if mint := f.Mint(); mint != "" {
		value := sqlq.Lower(q.value(facet.Mint))
		if f.MintIsWildcard() {
			q.sel.Where(sqlq.Like(value, "%"+strings.ToLower(mint)+"%"))
		} else {
			q.sel.Where(sqlq.Eq(value, sqlq.Lower(sqlq.Param(mint))))
		}
	}

	if authority := f.Authority(); authority != "" {
		q.sel.Where(sqlq.Like(sqlq.Lower(q.value(facet.Authority)), sqlq.Contains(strings.ToLower(authority))))
	}

	if from, to, ok := f.YearRange(); ok {
		dateFrom, dateTo := year("date_from"), year("date_to")
		q.sel.Where(
			sqlq.Or(sqlq.IsNull(dateTo), sqlq.Ge(dateTo, sqlq.Param(int64(from)))),
			sqlq.Or(sqlq.IsNull(dateFrom), sqlq.Le(dateFrom, sqlq.Param(int64(to)))),
		)
	}

	if f.HasImages() {
		q.sel.Where(q.hasImages())
	}
}

// nonEmpty restricts e to non-NULL, non-empty values.
func nonEmpty(e sqlq.Expr) sqlq.Expr {
	return sqlq.And(sqlq.IsNotNull(e), sqlq.Ne(e, sqlq.Param("")))
}

// order appends the listing sort; non-uid sorts break ties by uid ascending.
func order(sel *sqlq.Select, s listing.Sort) {
	uid := sqlq.Col(aliasVariant, "uid")
	updated := sqlq.Col(aliasVariant, "updated_at")
	switch s {
	case listing.UIDDesc:
		sel.OrderBy(uid, true)
	case listing.UpdatedAtAsc:
		sel.OrderBy(updated, false).OrderBy(uid, false)
	case listing.UpdatedAtDesc:
		sel.OrderBy(updated, true).OrderBy(uid, false)
	default:
		sel.OrderBy(uid, false)
	}
}
