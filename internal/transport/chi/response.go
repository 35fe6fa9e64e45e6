package chi

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/logger"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	cacheSuccess    = "public, max-age=30, stale-while-revalidate=30"
	cacheNever      = "no-store"
)

// errorItem is one entry of the error envelope.
type errorItem struct {
	Title  string `json:"title"`
	Code   int    `json:"code"`
	Detail string `json:"detail,omitempty"`
}

type errorEnvelope struct {
	Errors []errorItem `json:"errors"`
}

// encode renders v without HTML escaping so the body and its ETag stay stable across clients.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err //nolint:wrapcheck // surfaced as a 500 by the caller
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// etag returns the quoted SHA-1 of body.
func etag(body []byte) string {
	sum := sha1.Sum(body) //nolint:gosec // see import
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// writeJSON sends a 200 payload with an ETag. A matching If-None-Match yields 304 with no body.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := encode(v)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to encode response", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	tag := etag(body)
	h := w.Header()
	h.Set("Content-Type", contentTypeJSON)
	h.Set("Cache-Control", cacheSuccess)
	h.Set("ETag", tag)

	if inm := strings.TrimSpace(r.Header.Get("If-None-Match")); inm != "" && inm == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeStatusJSON sends v with an explicit status and no conditional handling.
func writeStatusJSON(w http.ResponseWriter, status int, v any) {
	body, _ := encode(v)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", cacheNever)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError sends the error envelope. Errors are never cached.
func writeError(w http.ResponseWriter, status int, title, detail string) {
	body, _ := encode(errorEnvelope{Errors: []errorItem{{Title: title, Code: status, Detail: detail}}})
	h := w.Header()
	h.Set("Content-Type", contentTypeJSON)
	h.Set("Cache-Control", cacheNever)
	h.Set("ETag", etag(body))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// sentinelHandler matches a sentinel and reports the error text as detail when withDetail is set.
func sentinelHandler(sentinel error, status int, title string, withDetail bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		detail := ""
		if withDetail {
			detail = publicDetail(err, sentinel)
		}
		writeError(w, status, title, detail)
		return true
	}
}

// publicDetail returns the message of the typed error behind sentinel, without wrapping context.
func publicDetail(err, sentinel error) string {
	var (
		ve *domain.ValidationError
		tb *domain.QueryTooBroadError
		tl *domain.ResultTooLargeError
		rl *domain.RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &tb):
		return tb.Error()
	case errors.As(err, &tl):
		return tl.Error()
	case errors.As(err, &rl):
		return rl.Error()
	}
	return sentinel.Error()
}

// rateLimitedHandler adds Retry-After to the 429 response.
func rateLimitedHandler(w http.ResponseWriter, err error) bool {
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		return false
	}
	if rl.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter))
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	writeError(w, http.StatusTooManyRequests, "Too many requests", rl.Error())
	return true
}

var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "Bad request", true),
	sentinelHandler(domain.ErrQueryTooBroad, http.StatusBadRequest, "Query too broad", true),
	sentinelHandler(domain.ErrAuthRequired, http.StatusUnauthorized, "Authentication required", false),
	rateLimitedHandler,
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "Resource not found", false),
	sentinelHandler(domain.ErrResultTooLarge, http.StatusUnprocessableEntity, "Result set too large", true),
}

// handleError maps err onto the error envelope. Unclassified errors become 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Debug("request rejected", zap.Error(err))
			return
		}
	}

	log.Error("internal error", zap.Error(err))
	detail := ""
	if errors.Is(err, domain.ErrQueryTimeout) {
		detail = "query exceeded its time budget"
	}
	writeError(w, http.StatusInternalServerError, "Internal server error", detail)
}
