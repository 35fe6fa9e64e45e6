package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrNoRows      = errors.New("db: no rows")
)

// Op constants name the failing command or statement class for error context.
const (
	OpGet         = "GET"
	OpSet         = "SET"
	OpIncr        = "INCR"
	OpExpire      = "EXPIRE"
	OpTTL         = "TTL"
	OpQuery       = "QUERY"
	OpScan        = "SCAN"
	OpTableExists = "TABLE_EXISTS"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
