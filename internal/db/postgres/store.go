// Package postgres implements the catalog SQL store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/numistr/internal/db"
)

// Compile-time check: Store implements db.SQLStore.
var _ db.SQLStore = (*Store)(nil)

// Config holds connection parameters.
type Config struct {
	DSN      string
	MaxConns int32
}

// Store implements db.SQLStore via pgxpool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore parses the DSN and creates a lazily connecting pool.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	// Catalog access is read-only.
	poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "numistr"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Query runs a row-returning statement.
func (s *Store) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return rows, nil
}

// QueryRow runs a single-row statement; errors surface on Scan.
func (s *Store) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return row{inner: s.pool.QueryRow(ctx, sql, args...)}
}

// TableExists reports whether name resolves to a relation on the search path.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var oid *uint32
	if err := s.pool.QueryRow(ctx, "SELECT to_regclass($1)::oid", name).Scan(&oid); err != nil {
		return false, &db.Error{Op: db.OpTableExists, Err: err}
	}
	return oid != nil, nil
}

// row maps pgx.ErrNoRows to db.ErrNoRows and wraps other scan failures.
type row struct {
	inner pgx.Row
}

func (r row) Scan(dest ...any) error {
	err := r.inner.Scan(dest...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return db.ErrNoRows
	default:
		return &db.Error{Op: db.OpScan, Err: err}
	}
}
