// Package material canonicalizes free-text coin material values.
package material

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical materials.
const (
	Bronze   = "bronze"
	Silver   = "silver"
	Gold     = "gold"
	Electrum = "electrum"
	Lead     = "lead"
	Iron     = "iron"
)

// Entry is one row of the public materials list.
type Entry struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameTR string `json:"name_tr"`
}

// Table is the material vocabulary a Normalizer is built from.
type Table struct {
	ShortCodes map[string]string   // "ae" -> bronze
	Variants   map[string][]string // canonical -> stored spellings
	Stems      map[string][]string // canonical -> substrings that identify it
	List       []Entry
}

// DefaultStems are the spelling fragments matched by substring.
func DefaultStems() map[string][]string {
	return map[string][]string{
		Silver: {"gumus", "gümüş"},
		Gold:   {"altin", "altın"},
		Bronze: {"bronz"},
	}
}

// ruleOrder fixes precedence when an input could match more than one material.
var ruleOrder = []string{Silver, Gold, Bronze, Electrum, Lead, Iron}

// Normalizer maps raw material strings onto the canonical vocabulary.
// Safe for concurrent use.
type Normalizer struct {
	shortCodes map[string]string
	variants   map[string][]string
	stems      map[string][]string
	order      []string
	list       []Entry
}

// NewNormalizer builds a Normalizer, copying the table.
func NewNormalizer(t Table) *Normalizer {
	n := &Normalizer{
		shortCodes: make(map[string]string, len(t.ShortCodes)),
		variants:   make(map[string][]string, len(t.Variants)),
		stems:      make(map[string][]string, len(t.Stems)),
		list:       slices.Clone(t.List),
	}
	for k, v := range t.ShortCodes {
		n.shortCodes[fold(k)] = fold(v)
	}
	for canonical, vs := range t.Variants {
		key := fold(canonical)
		for _, v := range vs {
			n.variants[key] = append(n.variants[key], fold(v))
		}
	}
	for canonical, ss := range t.Stems {
		key := fold(canonical)
		for _, s := range ss {
			n.stems[key] = append(n.stems[key], fold(s))
		}
	}

	n.order = slices.Clone(ruleOrder)
	extra := make([]string, 0)
	for canonical := range n.variants {
		if !slices.Contains(n.order, canonical) {
			extra = append(extra, canonical)
		}
	}
	slices.Sort(extra)
	n.order = append(n.order, extra...)
	return n
}

// Normalize returns the canonical material for raw, or ok=false when raw is blank.
// Unrecognized input is returned folded but otherwise unchanged.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	v := fold(raw)
	if v == "" {
		return "", false
	}
	if canonical, ok := n.shortCodes[v]; ok {
		return canonical, true
	}
	for _, canonical := range n.order {
		if v == canonical || slices.Contains(n.variants[canonical], v) {
			return canonical, true
		}
		for _, stem := range n.stems[canonical] {
			if strings.Contains(v, stem) {
				return canonical, true
			}
		}
	}
	return v, true
}

// VariantsFor returns every stored spelling of canonical, always including canonical itself.
func (n *Normalizer) VariantsFor(canonical string) []string {
	key := fold(canonical)
	out := slices.Clone(n.variants[key])
	if !slices.Contains(out, key) {
		out = append([]string{key}, out...)
	}
	return out
}

// Rule maps folded spellings onto a canonical material.
// Exact values match the whole folded input, Stems match as substrings.
type Rule struct {
	Canonical string
	Exact     []string
	Stems     []string
}

// Rules returns the matching rules in the precedence Normalize applies:
// short codes first, then each canonical material in rule order.
// The first matching rule decides; input no rule matches stays as folded.
func (n *Normalizer) Rules() []Rule {
	byTarget := make(map[string][]string, len(n.shortCodes))
	for code, canonical := range n.shortCodes {
		byTarget[canonical] = append(byTarget[canonical], code)
	}
	targets := make([]string, 0, len(byTarget))
	for canonical := range byTarget {
		targets = append(targets, canonical)
	}
	slices.Sort(targets)

	rules := make([]Rule, 0, len(targets)+len(n.order))
	for _, canonical := range targets {
		codes := byTarget[canonical]
		slices.Sort(codes)
		rules = append(rules, Rule{Canonical: canonical, Exact: codes})
	}
	for _, canonical := range n.order {
		rules = append(rules, Rule{
			Canonical: canonical,
			Exact:     n.VariantsFor(canonical),
			Stems:     slices.Clone(n.stems[canonical]),
		})
	}
	return rules
}

// IsCanonical reports whether value is a known canonical material.
func (n *Normalizer) IsCanonical(value string) bool {
	_, ok := n.variants[fold(value)]
	return ok
}

// Canonicals returns the known canonical materials in rule order.
func (n *Normalizer) Canonicals() []string {
	out := make([]string, 0, len(n.order))
	for _, c := range n.order {
		if _, ok := n.variants[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// List returns the public materials list.
func (n *Normalizer) List() []Entry {
	return slices.Clone(n.list)
}

// fold trims and lowercases s. A Caser is not safe for concurrent use, so one is made per call.
func fold(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}
