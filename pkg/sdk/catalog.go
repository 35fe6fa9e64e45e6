package numistr

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/suggest"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	cataloguc "github.com/kailas-cloud/numistr/internal/usecase/catalog"
)

// Filters narrows catalog queries. Empty fields are unset.
// Mint accepts % and _ wildcards; the other text filters match exactly, case-insensitively.
type Filters struct {
	Region    string
	Material  string
	Mint      string
	Authority string
	YearFrom  *int
	YearTo    *int
	HasImages bool
}

// Year returns a year bound for Filters.
func Year(y int) *int { return &y }

func (f Filters) toSet() (filter.Set, error) {
	raw := filter.Raw{
		Region:    f.Region,
		Material:  f.Material,
		Mint:      f.Mint,
		Authority: f.Authority,
	}
	if f.YearFrom != nil {
		raw.YearFrom = strconv.Itoa(*f.YearFrom)
	}
	if f.YearTo != nil {
		raw.YearTo = strconv.Itoa(*f.YearTo)
	}
	if f.HasImages {
		raw.HasImages = "1"
	}
	s, err := filter.New(raw)
	if err != nil {
		return filter.Set{}, fmt.Errorf("filters: %w", err)
	}
	return s, nil
}

// Sort is the listing order.
type Sort string

// Sort constants.
const (
	SortUIDAsc        Sort = "uid_asc"
	SortUIDDesc       Sort = "uid_desc"
	SortUpdatedAtAsc  Sort = "updated_at_asc"
	SortUpdatedAtDesc Sort = "updated_at_desc"
)

// ListOptions pages a listing. Zero values take the defaults (page 1, 20 per page, uid ascending).
type ListOptions struct {
	Page    int
	PerPage int
	Sort    Sort
}

// Page is one listing page. Rows carry every projected variant column.
type Page struct {
	Rows       []map[string]any
	Total      int64
	Page       int
	PerPage    int
	TotalPages int64
	HasNext    bool
}

// List pages the variants matching f.
// A lone region or material filter fails with ErrQueryTooBroad; an oversized
// unnarrowed result fails with ErrResultTooLarge.
func (c *Client) List(ctx context.Context, f Filters, opts ListOptions) (_ Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list", start, err) }()

	set, err := f.toSet()
	if err != nil {
		return Page{}, err
	}
	req := listing.New(set, listing.ParseSort(string(opts.Sort)),
		orDefault(opts.Page, 1), orDefault(opts.PerPage, listing.DefaultPerPage), c.maxPerPage, false)

	res, err := c.catalog.List(ctx, req)
	if err != nil {
		return Page{}, fmt.Errorf("list: %w", err)
	}

	rows := make([]map[string]any, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = r
	}
	p := res.Pagination
	return Page{
		Rows:       rows,
		Total:      p.Total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages,
		HasNext:    p.Next > 0,
	}, nil
}

// Count returns the number of variants matching f. No guardrail applies.
func (c *Client) Count(ctx context.Context, f Filters) (_ int64, err error) {
	start := time.Now()
	defer func() { c.obs.observe("count", start, err) }()

	set, err := f.toSet()
	if err != nil {
		return 0, err
	}
	res, err := c.catalog.List(ctx, listing.New(set, listing.UIDAsc, 1, 0, c.maxPerPage, true))
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return res.Pagination.Total, nil
}

// FacetOptions tunes facet aggregation. Zero values take the defaults (15 values, 50-year buckets).
type FacetOptions struct {
	Limit     int
	Bucket    int
	Skip      []string // "mint", "authority", "material", "years"
	TotalOnly bool
}

// FacetCount is one value of a categorical facet.
type FacetCount struct {
	Name  string
	Count int64
}

// YearBucket is one bar of the year histogram, bounds inclusive.
type YearBucket struct {
	From  int64
	To    int64
	Count int64
}

// Facets holds the grouped counts for a filter set.
type Facets struct {
	Total       int64
	YearsBucket int
	Mint        []FacetCount
	Authority   []FacetCount
	Material    []FacetCount
	Years       []YearBucket
}

// Facets aggregates the variants matching f per mint, authority, material and year bucket.
func (c *Client) Facets(ctx context.Context, f Filters, opts FacetOptions) (_ Facets, err error) {
	start := time.Now()
	defer func() { c.obs.observe("facets", start, err) }()

	set, err := f.toSet()
	if err != nil {
		return Facets{}, err
	}

	res, err := c.catalog.Facets(ctx, facet.New(set,
		orDefault(opts.Limit, facet.DefaultLimit), orDefault(opts.Bucket, facet.DefaultBucket), opts.Skip, opts.TotalOnly))
	if err != nil {
		return Facets{}, fmt.Errorf("facets: %w", err)
	}

	years := make([]YearBucket, len(res.Years))
	for i, b := range res.Years {
		years[i] = YearBucket{From: b.Start, To: b.Start + int64(b.Width) - 1, Count: b.Count}
	}
	return Facets{
		Total:       res.Total,
		YearsBucket: res.YearsBucket,
		Mint:        fromCounts(res.Mint),
		Authority:   fromCounts(res.Authority),
		Material:    fromCounts(res.Material),
		Years:       years,
	}, nil
}

// orDefault substitutes def for an unset option. Other values are clamped by the domain.
func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func fromCounts(in []facet.Count) []FacetCount {
	out := make([]FacetCount, len(in))
	for i, c := range in {
		out[i] = FacetCount{Name: c.Name, Count: c.Count}
	}
	return out
}

// SuggestMints returns mint names containing q. Inputs shorter than two characters yield nothing.
// A zero limit takes the default of 10.
func (c *Client) SuggestMints(ctx context.Context, q string, limit int) ([]string, error) {
	return c.suggest(ctx, "suggest.mints", suggest.Mint, q, limit)
}

// SuggestAuthorities returns authority names containing q.
func (c *Client) SuggestAuthorities(ctx context.Context, q string, limit int) ([]string, error) {
	return c.suggest(ctx, "suggest.authorities", suggest.Authority, q, limit)
}

func (c *Client) suggest(
	ctx context.Context, op string, d suggest.Dimension, q string, limit int,
) (_ []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe(op, start, err) }()

	names, err := c.catalog.Suggest(ctx, suggest.New(d, q, orDefault(limit, suggest.DefaultLimit)))
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return names, nil
}

// ImageOptions controls image URLs.
type ImageOptions struct {
	NoWatermark bool // URL without watermark; URLRaw is always unwatermarked
	Absolute    bool // prefix URLs with the configured image root
}

// Image is one stored image of a variant.
type Image struct {
	ID        int64
	VariantID int64
	Type      *string
	Weight    *string
	Diameter  *string
	Ordering  *int64
	URL       string
	URLRaw    string
}

// VariantOptions selects optional parts of a variant.
type VariantOptions struct {
	ImageOptions
	Raw    bool // fill Variant.Raw
	Images bool // fill Variant.Images
}

// Variant is one visible catalog variant.
type Variant struct {
	ArticleID      int64
	UID            string
	Slug           string
	Title          string
	Region         string
	Material       string // canonical, "" when unknown
	MaterialSource string // stored value before normalization
	Raw            map[string]any
	Images         []Image
}

// Variant looks up a visible variant by article id, uid (ntr:var:...) or slug.
// Unknown and out-of-scope keys fail with ErrNotFound.
func (c *Client) Variant(ctx context.Context, key string, opts VariantOptions) (_ Variant, err error) {
	start := time.Now()
	defer func() { c.obs.observe("variant", start, err) }()

	k, err := variant.ParseKey(key)
	if err != nil {
		return Variant{}, fmt.Errorf("variant %q: %w", key, ErrNotFound)
	}

	view, err := c.catalog.Item(ctx, k, cataloguc.ItemOptions{
		Raw:       opts.Raw,
		Fields:    true,
		Images:    opts.Images,
		Watermark: opts.watermark(),
		Absolute:  opts.Absolute,
	})
	if err != nil {
		return Variant{}, fmt.Errorf("variant %q: %w", key, err)
	}

	it := view.Item
	v := Variant{
		ArticleID:      it.ArticleID,
		UID:            it.UID,
		Slug:           it.Slug,
		Title:          it.Title,
		Region:         it.Region,
		Material:       it.Material,
		MaterialSource: it.MaterialSource,
		Raw:            it.Raw,
	}
	if view.Images != nil {
		v.Images = fromImages(view.Images)
	}
	return v, nil
}

// Images lists the images of a visible variant by article id.
func (c *Client) Images(ctx context.Context, variantID int64, opts ImageOptions) (_ []Image, err error) {
	start := time.Now()
	defer func() { c.obs.observe("images", start, err) }()

	images, err := c.catalog.Images(ctx, variantID, opts.watermark(), opts.Absolute)
	if err != nil {
		return nil, fmt.Errorf("images of %d: %w", variantID, err)
	}
	return fromImages(images), nil
}

func (o ImageOptions) watermark() int {
	if o.NoWatermark {
		return 0
	}
	return 1
}

func fromImages(in []cataloguc.ImageView) []Image {
	out := make([]Image, len(in))
	for i, img := range in {
		out[i] = Image{
			ID:        img.ImageID,
			VariantID: img.VariantID,
			Type:      img.Type,
			Weight:    img.Weight,
			Diameter:  img.Diameter,
			Ordering:  img.Ordering,
			URL:       img.URL,
			URLRaw:    img.URLRaw,
		}
	}
	return out
}

// Stats summarizes the visible catalog.
type Stats struct {
	Variants    int64
	WithImages  int64
	Regions     int64
	Mints       int64
	Authorities int64
	MinYear     *int64
	MaxYear     *int64
}

// Stats returns whole-catalog aggregates.
func (c *Client) Stats(ctx context.Context) (_ Stats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, err) }()

	s, err := c.catalog.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return Stats(s), nil
}

// RegionCount is the number of visible variants in one region.
type RegionCount struct {
	Code  string
	Count int64
}

// Regions returns region codes with their variant counts.
func (c *Client) Regions(ctx context.Context) (_ []RegionCount, err error) {
	start := time.Now()
	defer func() { c.obs.observe("regions", start, err) }()

	regions, err := c.catalog.Regions(ctx)
	if err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}
	out := make([]RegionCount, len(regions))
	for i, r := range regions {
		out[i] = RegionCount{Code: r.Code, Count: r.Count}
	}
	return out, nil
}

// Material is one entry of the material vocabulary.
type Material struct {
	Code   string
	Name   string
	NameTR string
}

// Materials returns the configured material list.
func (c *Client) Materials() []Material {
	entries := c.catalog.Materials()
	out := make([]Material, len(entries))
	for i, e := range entries {
		out[i] = Material{Code: e.Code, Name: e.Name, NameTR: e.NameTR}
	}
	return out
}
