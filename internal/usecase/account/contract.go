package account

import (
	"context"

	"github.com/kailas-cloud/numistr/internal/domain/account"
)

// Repository resolves API tokens to accounts.
type Repository interface {
	FindByToken(ctx context.Context, token string) (account.Identity, error)
}
