// Package listing holds the validated listing request and its pagination arithmetic.
package listing

import (
	"strings"

	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
)

// Sort is the listing order.
type Sort string

// Sort constants. Non-uid sorts break ties by uid ascending.
const (
	UIDAsc        Sort = "uid_asc"
	UIDDesc       Sort = "uid_desc"
	UpdatedAtAsc  Sort = "updated_at_asc"
	UpdatedAtDesc Sort = "updated_at_desc"
)

// IsValid checks if the sort is one of the supported values.
func (s Sort) IsValid() bool {
	return s == UIDAsc || s == UIDDesc || s == UpdatedAtAsc || s == UpdatedAtDesc
}

// ParseSort maps a query value onto a Sort, falling back to UIDAsc.
func ParseSort(v string) Sort {
	s := Sort(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return UIDAsc
	}
	return s
}

// Pagination defaults.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Request is a validated listing query.
type Request struct {
	filters   filter.Set
	sort      Sort
	page      int
	perPage   int
	countOnly bool
}

// New clamps pagination: perPage to [1, maxPerPage], page to >= 1.
// Non-positive perPage takes DefaultPerPage (bounded by maxPerPage).
func New(filters filter.Set, sort Sort, page, perPage, maxPerPage int, countOnly bool) Request {
	if maxPerPage <= 0 {
		maxPerPage = MaxPerPage
	}
	perPage = max(1, min(perPage, maxPerPage))
	if page < 1 {
		page = 1
	}
	if !sort.IsValid() {
		sort = UIDAsc
	}
	return Request{
		filters:   filters,
		sort:      sort,
		page:      page,
		perPage:   perPage,
		countOnly: countOnly,
	}
}

// Filters returns the filter set.
func (r Request) Filters() filter.Set { return r.filters }

// Sort returns the listing order.
func (r Request) Sort() Sort { return r.sort }

// Page returns the 1-based page number.
func (r Request) Page() int { return r.page }

// PerPage returns the page size.
func (r Request) PerPage() int { return r.perPage }

// CountOnly reports whether only the total is requested.
func (r Request) CountOnly() bool { return r.countOnly }

// Offset returns the row offset of the page.
func (r Request) Offset() int { return (r.page - 1) * r.perPage }

// Pagination is the page arithmetic for a computed total.
type Pagination struct {
	Total      int64
	Page       int
	PerPage    int
	TotalPages int64
	Next       int // 0 when there is no next page
	Prev       int // 0 when there is no previous page
}

// Paginate computes total pages and neighbour pages for the request.
func (r Request) Paginate(total int64) Pagination {
	p := Pagination{Total: total, Page: r.page, PerPage: r.perPage}
	if total > 0 {
		per := int64(r.perPage)
		p.TotalPages = (total + per - 1) / per
	}
	if int64(r.Offset()+r.perPage) < total {
		p.Next = r.page + 1
	}
	if r.page > 1 {
		p.Prev = r.page - 1
	}
	return p
}
