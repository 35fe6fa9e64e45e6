// Package filter holds the catalog filter set shared by listing, facets and complexity scoring.
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/numistr/internal/domain"
)

// Filter keys as they appear in filter[...] query parameters.
const (
	KeyRegion    = "region"
	KeyMaterial  = "material"
	KeyMint      = "mint"
	KeyAuthority = "authority"
	KeyYearFrom  = "year_from"
	KeyYearTo    = "year_to"
	KeyHasImages = "has_images"
)

// MaxComplexity caps the complexity score.
const MaxComplexity = 10

// Raw is the unparsed filter input.
type Raw struct {
	Region    string
	Material  string
	Mint      string
	Authority string
	YearFrom  string
	YearTo    string
	HasImages string
}

// Set is a validated, trimmed filter set. The zero value matches everything in scope.
type Set struct {
	region    string
	material  string
	mint      string
	authority string
	yearFrom  *int
	yearTo    *int
	hasImages bool
}

// New trims and validates raw filter input.
func New(raw Raw) (Set, error) {
	s := Set{
		region:    strings.TrimSpace(raw.Region),
		material:  strings.TrimSpace(raw.Material),
		mint:      strings.TrimSpace(raw.Mint),
		authority: strings.TrimSpace(raw.Authority),
	}

	var err error
	if s.yearFrom, err = parseYear(KeyYearFrom, raw.YearFrom); err != nil {
		return Set{}, err
	}
	if s.yearTo, err = parseYear(KeyYearTo, raw.YearTo); err != nil {
		return Set{}, err
	}

	switch strings.ToLower(strings.TrimSpace(raw.HasImages)) {
	case "1", "true", "yes":
		s.hasImages = true
	}
	return s, nil
}

func parseYear(key, v string) (*int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, domain.NewValidation("filter["+key+"]", "must be an integer year")
	}
	return &n, nil
}

// Region returns the region code filter.
func (s Set) Region() string { return s.region }

// Material returns the raw material filter (not normalized).
func (s Set) Material() string { return s.material }

// Mint returns the mint filter.
func (s Set) Mint() string { return s.mint }

// Authority returns the authority filter.
func (s Set) Authority() string { return s.authority }

// YearFrom returns the lower year bound, nil when unset.
func (s Set) YearFrom() *int { return s.yearFrom }

// YearTo returns the upper year bound, nil when unset.
func (s Set) YearTo() *int { return s.yearTo }

// HasImages reports whether only variants with images are requested.
func (s Set) HasImages() bool { return s.hasImages }

// MintIsWildcard reports whether the mint filter contains LIKE wildcards.
func (s Set) MintIsWildcard() bool {
	return strings.ContainsAny(s.mint, "%_")
}

// HasYear reports whether either year bound is set.
func (s Set) HasYear() bool {
	return s.yearFrom != nil || s.yearTo != nil
}

// YearRange returns the overlap bounds. A one-sided bound is used for both ends.
func (s Set) YearRange() (from, to int, ok bool) {
	switch {
	case s.yearFrom != nil && s.yearTo != nil:
		return *s.yearFrom, *s.yearTo, true
	case s.yearFrom != nil:
		return *s.yearFrom, *s.yearFrom, true
	case s.yearTo != nil:
		return *s.yearTo, *s.yearTo, true
	}
	return 0, 0, false
}

// HasNarrowing reports whether mint, authority or a year bound narrows the query.
func (s Set) HasNarrowing() bool {
	return s.mint != "" || s.authority != "" || s.HasYear()
}

// IsEmpty reports whether no filter is active.
func (s Set) IsEmpty() bool {
	return s.region == "" && s.material == "" && s.mint == "" && s.authority == "" &&
		!s.HasYear() && !s.hasImages
}

// CheckBroad rejects material or region used without a narrowing filter.
func (s Set) CheckBroad() error {
	if s.HasNarrowing() {
		return nil
	}
	if s.material != "" && s.region == "" {
		return &domain.QueryTooBroadError{Filter: KeyMaterial}
	}
	if s.region != "" {
		return &domain.QueryTooBroadError{Filter: KeyRegion}
	}
	return nil
}

// Active returns the active filters keyed by filter name, for logging and cache keys.
func (s Set) Active() map[string]string {
	out := make(map[string]string)
	add := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	add(KeyRegion, s.region)
	add(KeyMaterial, s.material)
	add(KeyMint, s.mint)
	add(KeyAuthority, s.authority)
	if s.yearFrom != nil {
		out[KeyYearFrom] = strconv.Itoa(*s.yearFrom)
	}
	if s.yearTo != nil {
		out[KeyYearTo] = strconv.Itoa(*s.yearTo)
	}
	if s.hasImages {
		out[KeyHasImages] = "1"
	}
	return out
}

// Complexity scores the filter set from 1 to MaxComplexity:
// one per active filter, two more for a wildcard mint, one more for any year bound.
func (s Set) Complexity() int {
	c := 1 + len(s.Active())
	if s.MintIsWildcard() {
		c += 2
	}
	if s.HasYear() {
		c++
	}
	return min(MaxComplexity, c)
}

// Budget derives per-request rate ceilings and query timeouts from a complexity score.
type Budget struct {
	CeilingBase  int
	CeilingStep  int
	CeilingFloor int
	TimeoutBase  time.Duration
	TimeoutStep  time.Duration
	TimeoutMax   time.Duration
}

// DefaultBudget returns max(10, 60-c*5) requests and min(30s, 5s+c*2s).
func DefaultBudget() Budget {
	return Budget{
		CeilingBase:  60,
		CeilingStep:  5,
		CeilingFloor: 10,
		TimeoutBase:  5 * time.Second,
		TimeoutStep:  2 * time.Second,
		TimeoutMax:   30 * time.Second,
	}
}

// Ceiling returns the request ceiling for a complexity score.
func (b Budget) Ceiling(complexity int) int {
	return max(b.CeilingFloor, b.CeilingBase-complexity*b.CeilingStep)
}

// Timeout returns the query time budget for a complexity score.
func (b Budget) Timeout(complexity int) time.Duration {
	return min(b.TimeoutMax, b.TimeoutBase+time.Duration(complexity)*b.TimeoutStep)
}
