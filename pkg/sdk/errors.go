package numistr

import "github.com/kailas-cloud/numistr/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation     = domain.ErrValidation
	ErrQueryTooBroad  = domain.ErrQueryTooBroad
	ErrResultTooLarge = domain.ErrResultTooLarge
	ErrNotFound       = domain.ErrNotFound
	ErrQueryTimeout   = domain.ErrQueryTimeout
)
