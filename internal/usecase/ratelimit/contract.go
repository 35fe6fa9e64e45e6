package ratelimit

import (
	"context"
	"time"
)

// Counter counts requests per (endpoint, ip) in a fixed window.
type Counter interface {
	Hit(ctx context.Context, endpoint, ip string) (int64, error)
	Reset(ctx context.Context, endpoint, ip string) (time.Duration, error)
	Window() time.Duration
}
