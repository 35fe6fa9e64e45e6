// Package suggest holds typeahead requests.
package suggest

import (
	"strings"
	"unicode/utf8"
)

// Dimension is the column a suggestion is drawn from.
type Dimension string

// Suggest dimensions.
const (
	Mint      Dimension = "mint"
	Authority Dimension = "authority"
)

// IsValid checks if the dimension is one of the supported values.
func (d Dimension) IsValid() bool {
	return d == Mint || d == Authority
}

// Limits for suggest parameters.
const (
	MinQueryRunes = 2
	DefaultLimit  = 10
	MaxLimit      = 20
)

// Request is a validated suggest query.
type Request struct {
	dimension Dimension
	query     string
	limit     int
}

// New trims q and clamps limit to [1, MaxLimit]. Callers pass DefaultLimit when none was given.
func New(d Dimension, q string, limit int) Request {
	return Request{
		dimension: d,
		query:     strings.TrimSpace(q),
		limit:     max(1, min(limit, MaxLimit)),
	}
}

// Dimension returns the suggestion column.
func (r Request) Dimension() Dimension { return r.dimension }

// Query returns the trimmed input.
func (r Request) Query() string { return r.query }

// Limit returns the maximum number of names.
func (r Request) Limit() int { return r.limit }

// TooShort reports whether the input is below MinQueryRunes and must not be queried.
func (r Request) TooShort() bool {
	return utf8.RuneCountInString(r.query) < MinQueryRunes
}
