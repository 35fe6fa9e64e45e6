// Package chi serves the catalog API over HTTP.
package chi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/facet"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/listing"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/suggest"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/version"
	cataloguc "github.com/kailas-cloud/numistr/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/numistr/internal/usecase/health"
)

// Rate ceiling classes, keys of Options.Ceilings.
const (
	CeilingDefault = "default"
	CeilingSearch  = "search"
	CeilingFacets  = "facets"
	CeilingStats   = "stats"
)

const fallbackCeiling = 60

// Options holds request policy.
type Options struct {
	DefaultPerPage int
	MaxPerPage     int
	Ceilings       map[string]int
	Budget         filter.Budget
}

// Server implements the /v1 catalog API.
type Server struct {
	catalog Catalog
	limiter Limiter
	auth    Authenticator
	health  HealthChecker
	opts    Options
}

// NewServer creates an HTTP API server. limiter can be nil (no rate limiting).
func NewServer(catalog Catalog, limiter Limiter, auth Authenticator, health HealthChecker, opts Options) *Server {
	if opts.MaxPerPage <= 0 {
		opts.MaxPerPage = listing.MaxPerPage
	}
	if opts.DefaultPerPage <= 0 {
		opts.DefaultPerPage = listing.DefaultPerPage
	}
	return &Server{catalog: catalog, limiter: limiter, auth: auth, health: health, opts: opts}
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chirouter.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})

	r.Route("/v1", func(r chirouter.Router) {
		r.Get("/ping", s.Ping)
		r.Get("/health", s.Health)

		r.With(s.limit("variants", s.complexityCeiling(CeilingSearch))).Get("/variants", s.ListVariants)
		r.With(s.limit("variants_facets", s.complexityCeiling(CeilingFacets))).Get("/variants/facets", s.Facets)
		r.With(s.limit("variant_images", s.ceiling(CeilingDefault))).Get("/variants/{id:[0-9]+}/images", s.Images)
		r.With(s.limit("variant", s.ceiling(CeilingDefault))).Get("/variants/{key}", s.GetVariant)

		r.With(s.limit("suggest_mints", s.ceiling(CeilingSearch))).Get("/suggest/mints", s.suggest(suggest.Mint))
		r.With(s.limit("suggest_authorities", s.ceiling(CeilingSearch))).
			Get("/suggest/authorities", s.suggest(suggest.Authority))

		r.With(s.limit("regions", s.ceiling(CeilingStats))).Get("/regions", s.Regions)
		r.With(s.limit("materials", s.ceiling(CeilingStats))).Get("/materials", s.Materials)
		r.With(s.limit("stats", s.ceiling(CeilingStats))).Get("/stats", s.Stats)

		r.Group(func(r chirouter.Router) {
			r.Use(BearerAuthMiddleware(s.auth))
			r.With(s.limit("user_profile", s.ceiling(CeilingDefault))).Get("/user/profile", s.Profile)
			r.With(s.limit("user_subscription", s.ceiling(CeilingDefault))).Get("/user/subscription", s.Subscription)
		})
	})
}

// limit wraps a route with rate limiting, or passes through when no limiter is configured.
func (s *Server) limit(endpoint string, ceiling func(r *http.Request) int) func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimitMiddleware(s.limiter, endpoint, ceiling)
}

func (s *Server) ceilingFor(class string) int {
	if n := s.opts.Ceilings[class]; n > 0 {
		return n
	}
	if n := s.opts.Ceilings[CeilingDefault]; n > 0 {
		return n
	}
	return fallbackCeiling
}

func (s *Server) ceiling(class string) func(*http.Request) int {
	n := s.ceilingFor(class)
	return func(*http.Request) int { return n }
}

// complexityCeiling lowers the class ceiling for filter-heavy requests.
// Unparseable filters keep the class ceiling; the handler rejects them.
func (s *Server) complexityCeiling(class string) func(*http.Request) int {
	base := s.ceilingFor(class)
	return func(r *http.Request) int {
		f, err := parseFilters(r.URL.Query())
		if err != nil {
			return base
		}
		return min(base, s.opts.Budget.Ceiling(f.Complexity()))
	}
}

type links struct {
	Next *string `json:"next"`
	Prev *string `json:"prev"`
}

type listMeta struct {
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int64  `json:"total_pages"`
	Sort       string `json:"sort,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

type listResponse struct {
	Data  []variant.Row `json:"data"`
	Meta  listMeta      `json:"meta"`
	Links links         `json:"links"`
}

// ListVariants handles GET /v1/variants.
func (s *Server) ListVariants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilters(q)
	if err != nil {
		handleError(w, r, err)
		return
	}

	countOnly := strings.EqualFold(stringParam(q, "mode"), "count") || strings.EqualFold(stringParam(q, "only"), "count")
	req := listing.New(
		f,
		listing.ParseSort(q.Get("sort")),
		intParam(q, "page", 1),
		intParam(q, "per_page", s.opts.DefaultPerPage),
		s.opts.MaxPerPage,
		countOnly,
	)

	res, err := s.catalog.List(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if res.CountOnly {
		writeJSON(w, r, listResponse{
			Data: []variant.Row{},
			Meta: listMeta{Total: res.Pagination.Total, Page: 1, Mode: "count"},
		})
		return
	}

	p := res.Pagination
	writeJSON(w, r, listResponse{
		Data: res.Rows,
		Meta: listMeta{
			Total:      p.Total,
			Page:       p.Page,
			PerPage:    p.PerPage,
			TotalPages: p.TotalPages,
			Sort:       string(res.Sort),
		},
		Links: links{
			Next: pageLink(p.Next, p.PerPage),
			Prev: pageLink(p.Prev, p.PerPage),
		},
	})
}

// pageLink renders a listing page link. Active filters are not carried over.
func pageLink(page, perPage int) *string {
	if page <= 0 {
		return nil
	}
	l := "/v1/variants?page=" + strconv.Itoa(page) + "&per_page=" + strconv.Itoa(perPage)
	return &l
}

type facetsMeta struct {
	Total       int64 `json:"total"`
	YearsBucket int   `json:"years_bucket"`
}

type yearBucket struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

type facetsBody struct {
	Mint      []facet.Count `json:"mint"`
	Authority []facet.Count `json:"authority"`
	Material  []facet.Count `json:"material"`
	Years     []yearBucket  `json:"years"`
}

type facetsResponse struct {
	Meta   facetsMeta `json:"meta"`
	Facets facetsBody `json:"facets"`
}

// Facets handles GET /v1/variants/facets.
func (s *Server) Facets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilters(q)
	if err != nil {
		handleError(w, r, err)
		return
	}

	req := facet.New(
		f,
		intParam(q, "facet_limit", facet.DefaultLimit),
		intParam(q, "years_bucket", facet.DefaultBucket),
		facet.ParseSkip(q.Get("skip")),
		strings.EqualFold(stringParam(q, "only"), "meta"),
	)

	res, err := s.catalog.Facets(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	years := make([]yearBucket, len(res.Years))
	for i, b := range res.Years {
		years[i] = yearBucket{Bucket: b.Label(), Count: b.Count}
	}
	writeJSON(w, r, facetsResponse{
		Meta: facetsMeta{Total: res.Total, YearsBucket: res.YearsBucket},
		Facets: facetsBody{
			Mint:      nonNil(res.Mint),
			Authority: nonNil(res.Authority),
			Material:  nonNil(res.Material),
			Years:     years,
		},
	})
}

func nonNil(c []facet.Count) []facet.Count {
	if c == nil {
		return []facet.Count{}
	}
	return c
}

type nameItem struct {
	Name string `json:"name"`
}

type dataResponse struct {
	Data any `json:"data"`
}

// suggest handles GET /v1/suggest/{mints,authorities}.
func (s *Server) suggest(d suggest.Dimension) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := suggest.New(d, q.Get("q"), intParam(q, "limit", suggest.DefaultLimit))
		names, err := s.catalog.Suggest(r.Context(), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		items := make([]nameItem, len(names))
		for i, n := range names {
			items[i] = nameItem{Name: n}
		}
		writeJSON(w, r, dataResponse{Data: items})
	}
}

type imagePayload struct {
	ImageID   int64   `json:"image_id"`
	VariantID int64   `json:"variant_id"`
	Type      *string `json:"type"`
	Weight    *string `json:"weight"`
	Diameter  *string `json:"diameter"`
	Ordering  *int64  `json:"ordering"`
	URL       string  `json:"url"`
	URLRaw    string  `json:"url_raw"`
}

type itemFields struct {
	MaterialSource *string `json:"material_source"`
}

type itemPayload struct {
	UID      *string         `json:"uid"`
	Slug     *string         `json:"slug"`
	Title    *string         `json:"title"`
	Region   *string         `json:"region"`
	Material *string         `json:"material"`
	Raw      variant.Row     `json:"_raw,omitempty"`
	Fields   *itemFields     `json:"_fields,omitempty"`
	Images   *[]imagePayload `json:"images,omitempty"`
}

// GetVariant handles GET /v1/variants/{key}.
func (s *Server) GetVariant(w http.ResponseWriter, r *http.Request) {
	key, err := variant.ParseKey(chirouter.URLParam(r, "key"))
	if err != nil {
		handleError(w, r, domain.ErrNotFound)
		return
	}

	q := r.URL.Query()
	include := listParam(q, "include")
	opts := cataloguc.ItemOptions{
		Raw:       hasItem(include, "raw"),
		Fields:    hasItem(include, "fields"),
		Images:    hasItem(include, "images"),
		Watermark: intParam(q, "wm", 1),
		Absolute:  intParam(q, "abs", 0) == 1,
	}

	view, err := s.catalog.Item(r.Context(), key, opts)
	if err != nil {
		handleError(w, r, err)
		return
	}

	it := view.Item
	p := itemPayload{
		UID:      optional(it.UID),
		Slug:     optional(it.Slug),
		Title:    optional(it.Title),
		Region:   optional(it.Region),
		Material: optional(it.Material),
		Raw:      it.Raw,
	}
	if view.WithFields {
		p.Fields = &itemFields{MaterialSource: optional(it.MaterialSource)}
	}
	if view.Images != nil {
		images := imagesToPayload(view.Images)
		p.Images = &images
	}
	writeJSON(w, r, dataResponse{Data: p})
}

// Images handles GET /v1/variants/{id}/images.
func (s *Server) Images(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chirouter.URLParam(r, "id"), 10, 64)
	if err != nil {
		handleError(w, r, domain.ErrNotFound)
		return
	}
	q := r.URL.Query()

	images, err := s.catalog.Images(r.Context(), id, intParam(q, "wm", 1), intParam(q, "abs", 0) == 1)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, dataResponse{Data: imagesToPayload(images)})
}

func imagesToPayload(images []cataloguc.ImageView) []imagePayload {
	out := make([]imagePayload, len(images))
	for i, img := range images {
		out[i] = imagePayload{
			ImageID:   img.ImageID,
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

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.catalog.Stats(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, dataResponse{Data: sum})
}

// Regions handles GET /v1/regions.
func (s *Server) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.catalog.Regions(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, dataResponse{Data: regions})
}

// Materials handles GET /v1/materials.
func (s *Server) Materials(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, dataResponse{Data: s.catalog.Materials()})
}

type profilePayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Tier     string `json:"tier"`
}

type subscriptionPayload struct {
	Tier  string `json:"tier"`
	IsPro bool   `json:"is_pro"`
}

// Profile handles GET /v1/user/profile.
func (s *Server) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		handleError(w, r, domain.ErrAuthRequired)
		return
	}
	writeJSON(w, r, dataResponse{Data: profilePayload{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Tier:     string(u.Tier),
	}})
}

// Subscription handles GET /v1/user/subscription.
func (s *Server) Subscription(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		handleError(w, r, domain.ErrAuthRequired)
		return
	}
	writeJSON(w, r, dataResponse{Data: subscriptionPayload{Tier: string(u.Tier), IsPro: u.IsPro()}})
}

type pingResponse struct {
	OK      bool   `json:"ok"`
	Pong    int64  `json:"pong"`
	Version string `json:"version"`
}

// Ping handles GET /v1/ping.
func (s *Server) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, pingResponse{OK: true, Pong: time.Now().Unix(), Version: version.Version})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /v1/health. Degraded dependencies answer 503.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeStatusJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}
