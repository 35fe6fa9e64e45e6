// Package ratelimit enforces per-endpoint request ceilings.
package ratelimit

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/logger"
	"github.com/kailas-cloud/numistr/internal/metrics"
)

// Decision is the outcome of one admitted request.
type Decision struct {
	Limit     int
	Remaining int
}

// Service admits or rejects requests against fixed-window counters.
type Service struct {
	counter Counter
}

// New creates a Service. counter can be nil (unlimited mode).
func New(counter Counter) *Service {
	return &Service{counter: counter}
}

// Check counts one request and admits it while the window count stays within ceiling.
// Counter failures admit the request. A rejection returns *domain.RateLimitError.
func (s *Service) Check(ctx context.Context, endpoint, ip string, ceiling int) (Decision, error) {
	d := Decision{Limit: ceiling, Remaining: ceiling}
	if s.counter == nil || ceiling <= 0 {
		return d, nil
	}

	n, err := s.counter.Hit(ctx, endpoint, ip)
	if err != nil {
		metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "fail_open").Inc()
		logger.FromContext(ctx).Warn("Rate limiter unavailable, allowing request",
			zap.String("endpoint", endpoint), zap.Error(err))
		return d, nil
	}

	if n > int64(ceiling) {
		metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "rejected").Inc()
		return Decision{Limit: ceiling}, &domain.RateLimitError{
			Limit:      ceiling,
			RetryAfter: s.retryAfter(ctx, endpoint, ip),
		}
	}

	metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "allowed").Inc()
	d.Remaining = ceiling - int(n)
	return d, nil
}

// retryAfter returns whole seconds until the window closes, at least 1.
func (s *Service) retryAfter(ctx context.Context, endpoint, ip string) int {
	ttl, err := s.counter.Reset(ctx, endpoint, ip)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to read rate limit window",
			zap.String("endpoint", endpoint), zap.Error(err))
		ttl = s.counter.Window()
	}
	return max(1, int(math.Ceil(ttl.Seconds())))
}

// Window returns the counting window, zero in unlimited mode.
func (s *Service) Window() time.Duration {
	if s.counter == nil {
		return 0
	}
	return s.counter.Window()
}
