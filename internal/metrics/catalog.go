package metrics

import "github.com/prometheus/client_golang/prometheus"

// Catalog Prometheus metrics.
var (
	CatalogQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "numistr",
			Name:      "catalog_query_duration_seconds",
			Help:      "Catalog operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	CatalogQueryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numistr",
			Name:      "catalog_query_errors_total",
			Help:      "Total catalog operation failures",
		},
		[]string{"operation", "error_type"}, // "timeout" / "storage"
	)

	GuardrailRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numistr",
			Name:      "guardrail_rejections_total",
			Help:      "Queries rejected before or after counting",
		},
		[]string{"reason"}, // "too_broad" / "too_large"
	)

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numistr",
			Name:      "response_cache_total",
			Help:      "Response cache hits and misses",
		},
		[]string{"payload", "result"}, // result: "hit" / "miss"
	)

	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numistr",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter outcomes per endpoint",
		},
		[]string{"endpoint", "decision"}, // "allowed" / "rejected" / "fail_open"
	)
)

var catalogMetricsRegistered bool

// RegisterCatalogMetrics registers Prometheus catalog metrics. Must be called once from main.
func RegisterCatalogMetrics() {
	if catalogMetricsRegistered {
		return
	}
	prometheus.MustRegister(CatalogQueryDuration)
	prometheus.MustRegister(CatalogQueryErrorsTotal)
	prometheus.MustRegister(GuardrailRejectionsTotal)
	prometheus.MustRegister(ResponseCacheTotal)
	prometheus.MustRegister(RateLimitDecisionsTotal)
	catalogMetricsRegistered = true
}
