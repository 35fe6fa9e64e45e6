package chi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
)

// filterParams mirrors the filter[...] deepObject query parameter.
type filterParams struct {
	Region    *string `json:"region,omitempty"`
	Material  *string `json:"material,omitempty"`
	Mint      *string `json:"mint,omitempty"`
	Authority *string `json:"authority,omitempty"`
	YearFrom  *string `json:"year_from,omitempty"`
	YearTo    *string `json:"year_to,omitempty"`
	HasImages *string `json:"has_images,omitempty"`
}

// parseFilters binds filter[...] and validates it. Unknown keys are rejected.
func parseFilters(q url.Values) (filter.Set, error) {
	if !hasDeepObject(q, "filter") {
		return filter.Set{}, nil
	}

	var p *filterParams
	if err := runtime.BindQueryParameter("deepObject", true, false, "filter", q, &p); err != nil {
		return filter.Set{}, domain.NewValidation("filter", invalidFilterReason(err))
	}
	if p == nil {
		return filter.Set{}, nil
	}
	return filter.New(filter.Raw{
		Region:    deref(p.Region),
		Material:  deref(p.Material),
		Mint:      deref(p.Mint),
		Authority: deref(p.Authority),
		YearFrom:  deref(p.YearFrom),
		YearTo:    deref(p.YearTo),
		HasImages: deref(p.HasImages),
	})
}

func hasDeepObject(q url.Values, name string) bool {
	for k := range q {
		if strings.HasPrefix(k, name+"[") {
			return true
		}
	}
	return false
}

func invalidFilterReason(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "not present in destination") {
		return "unknown filter key; supported: region, material, mint, authority, year_from, year_to, has_images"
	}
	return "malformed filter parameter"
}

// intParam reads an optional integer query parameter. Missing or malformed values yield def.
func intParam(q url.Values, name string, def int) int {
	var v *int
	if err := runtime.BindQueryParameter("form", true, false, name, q, &v); err != nil || v == nil {
		return def
	}
	return *v
}

// stringParam reads an optional string query parameter.
func stringParam(q url.Values, name string) string {
	return strings.TrimSpace(q.Get(name))
}

// listParam splits a comma-separated query parameter into trimmed, lower-cased, non-empty items.
func listParam(q url.Values, name string) []string {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasItem(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header, case-insensitive on the scheme.
func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
