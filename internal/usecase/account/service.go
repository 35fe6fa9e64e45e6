// Package account authenticates bearer tokens and derives subscription tiers.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/account"
)

// Service resolves bearer tokens to users.
type Service struct {
	repo       Repository
	proGroupID int64
}

// New creates a Service. Members of proGroupID get the pro tier.
func New(repo Repository, proGroupID int64) *Service {
	return &Service{repo: repo, proGroupID: proGroupID}
}

// Authenticate returns the user owning token.
// Missing, unknown and blocked tokens return domain.ErrAuthRequired.
func (s *Service) Authenticate(ctx context.Context, token string) (account.User, error) {
	if token == "" {
		return account.User{}, domain.ErrAuthRequired
	}

	id, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return account.User{}, domain.ErrAuthRequired
		}
		return account.User{}, fmt.Errorf("resolve token: %w", err)
	}

	u := id.User
	u.Tier = account.TierFor(id.Groups, s.proGroupID)
	return u, nil
}
