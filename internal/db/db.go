package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// SQLStore is the relational catalog facade.
type SQLStore interface {
	Pinger
	Querier
	SchemaProber
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// KVCache is the shared key/value facade for counters and cached payloads.
type KVCache interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Querier runs read-only SQL.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SchemaProber inspects the live schema.
type SchemaProber interface {
	TableExists(ctx context.Context, name string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// IncrWithTTL increments key and starts its expiry on first use, returning the new count.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}
