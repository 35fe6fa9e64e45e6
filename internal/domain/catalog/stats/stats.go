// Package stats holds whole-catalog aggregate payloads.
package stats

// Summary summarizes the visible catalog.
type Summary struct {
	Variants    int64  `json:"variants"`
	WithImages  int64  `json:"with_images"`
	Regions     int64  `json:"regions"`
	Mints       int64  `json:"mints"`
	Authorities int64  `json:"authorities"`
	MinYear     *int64 `json:"min_year"`
	MaxYear     *int64 `json:"max_year"`
}

// RegionCount is the number of visible variants in one region.
type RegionCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}
