package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed request parameter.
	ErrValidation = errors.New("validation failed")
	// ErrQueryTooBroad signals a filter set that would scan an unbounded slice of the catalog.
	ErrQueryTooBroad = errors.New("query too broad")
	// ErrResultTooLarge signals a result set above the safety cap with no narrowing filter.
	ErrResultTooLarge = errors.New("result too large")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAuthRequired signals a missing, unknown or blocked bearer token.
	ErrAuthRequired = errors.New("authentication required")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQueryTimeout signals a catalog query that exceeded its time budget.
	ErrQueryTimeout = errors.New("query timeout")
)

// ValidationError wraps ErrValidation with the offending parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a validation error for a single parameter.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// QueryTooBroadError wraps ErrQueryTooBroad with the lone filter that triggered it.
type QueryTooBroadError struct {
	Filter string
}

func (e *QueryTooBroadError) Error() string {
	return fmt.Sprintf("filter[%s] cannot be used alone; add filter[mint], filter[authority] or filter[year_from]/filter[year_to]",
		e.Filter)
}

func (e *QueryTooBroadError) Unwrap() error { return ErrQueryTooBroad }

// ResultTooLargeError wraps ErrResultTooLarge with the observed total.
type ResultTooLargeError struct {
	Total int64
}

func (e *ResultTooLargeError) Error() string {
	return fmt.Sprintf("result set too large (%d); add filter[mint], filter[authority] or filter[year_from]/filter[year_to], or use mode=count",
		e.Total)
}

func (e *ResultTooLargeError) Unwrap() error { return ErrResultTooLarge }

// RateLimitError wraps ErrRateLimited with the ceiling that was hit.
type RateLimitError struct {
	Limit      int
	RetryAfter int // seconds until the window resets
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per minute", e.Limit)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
