package chi

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// CORSMiddleware allows any origin and answers preflight requests.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-None-Match")
			h.Set("Access-Control-Expose-Headers", "ETag, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware counts the request against endpoint for the client IP.
// ceiling computes the request's ceiling, which may depend on its filters.
func RateLimitMiddleware(l Limiter, endpoint string, ceiling func(r *http.Request) int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Check(r.Context(), endpoint, ClientIP(r), ceiling(r))
			if err != nil {
				handleError(w, r, err)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the caller address: CF-Connecting-IP, then the first X-Forwarded-For hop,
// then X-Real-IP, then the peer address. Falls back to 0.0.0.0.
func ClientIP(r *http.Request) string {
	for _, h := range []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"} {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		if first, _, ok := strings.Cut(v, ","); ok {
			v = first
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "0.0.0.0"
}
