// Package facet holds facet aggregation requests and results.
package facet

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
)

// Dimension is a facet axis.
type Dimension string

// Facet dimensions.
const (
	Mint      Dimension = "mint"
	Authority Dimension = "authority"
	Material  Dimension = "material"
	Years     Dimension = "years"
)

// Categorical lists the grouped-count dimensions in response order.
var Categorical = []Dimension{Mint, Authority, Material}

// IsValid checks if the dimension is one of the supported values.
func (d Dimension) IsValid() bool {
	return d == Mint || d == Authority || d == Material || d == Years
}

// Limits for facet parameters.
const (
	DefaultLimit  = 15
	MaxLimit      = 100
	DefaultBucket = 50
	MaxBucket     = 500
)

// Request is a validated facet query.
type Request struct {
	filters  filter.Set
	limit    int
	bucket   int
	skip     map[Dimension]bool
	metaOnly bool
}

// New clamps limit to [1, MaxLimit] and bucket to [1, MaxBucket].
// Callers pass DefaultLimit and DefaultBucket for absent parameters. Unknown skip names are ignored.
func New(filters filter.Set, limit, bucket int, skip []string, metaOnly bool) Request {
	r := Request{
		filters:  filters,
		limit:    max(1, min(limit, MaxLimit)),
		bucket:   max(1, min(bucket, MaxBucket)),
		skip:     make(map[Dimension]bool, len(skip)),
		metaOnly: metaOnly,
	}
	for _, s := range skip {
		d := Dimension(strings.ToLower(strings.TrimSpace(s)))
		if d.IsValid() {
			r.skip[d] = true
		}
	}
	return r
}

// ParseSkip splits a comma-separated skip list.
func ParseSkip(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// Filters returns the filter set.
func (r Request) Filters() filter.Set { return r.filters }

// Limit returns the per-dimension row limit for categorical facets.
func (r Request) Limit() int { return r.limit }

// Bucket returns the year bucket width.
func (r Request) Bucket() int { return r.bucket }

// MetaOnly reports whether only the total is requested.
func (r Request) MetaOnly() bool { return r.metaOnly }

// Skips reports whether dimension d should not be computed.
func (r Request) Skips(d Dimension) bool { return r.skip[d] }

// Count is one categorical facet value.
type Count struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// SortCounts orders counts by Count descending, then Name ascending.
func SortCounts(counts []Count) {
	slices.SortStableFunc(counts, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// Bucket is one year histogram bar.
type Bucket struct {
	Start int64
	Width int
	Count int64
}

// Label renders the inclusive bucket range, e.g. "-100..-51".
func (b Bucket) Label() string {
	return strconv.FormatInt(b.Start, 10) + ".." + strconv.FormatInt(b.Start+int64(b.Width)-1, 10)
}

// Result holds every computed dimension. Skipped dimensions are empty, never nil.
type Result struct {
	Total       int64
	YearsBucket int
	Mint        []Count
	Authority   []Count
	Material    []Count
	Years       []Bucket
}

// Empty returns a zero-total result with every dimension empty.
func Empty(bucket int) Result {
	return Result{
		YearsBucket: bucket,
		Mint:        []Count{},
		Authority:   []Count{},
		Material:    []Count{},
		Years:       []Bucket{},
	}
}
