// Package account resolves API tokens to site accounts.
package account

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/account"
)

// Repo implements usecase/account.Repository on gorm.
type Repo struct {
	db     *gorm.DB
	series string
}

// New creates an account repository. series selects which user_keys rows are API tokens.
func New(db *gorm.DB, series string) *Repo {
	return &Repo{db: db, series: series}
}

// FindByToken returns the active account owning token.
// Unknown tokens and blocked accounts return domain.ErrNotFound.
func (r *Repo) FindByToken(ctx context.Context, token string) (account.Identity, error) {
	if token == "" {
		return account.Identity{}, fmt.Errorf("empty token: %w", domain.ErrNotFound)
	}
	tx := r.db.WithContext(ctx)

	var key userKey
	err := tx.Where("token = ? AND series = ?", token, r.series).Take(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.Identity{}, fmt.Errorf("token: %w", domain.ErrNotFound)
	}
	if err != nil {
		return account.Identity{}, fmt.Errorf("find token: %w", err)
	}
	if key.UserID <= 0 {
		return account.Identity{}, fmt.Errorf("token without user: %w", domain.ErrNotFound)
	}

	var u userRow
	err = tx.Where("id = ? AND block = ?", key.UserID, 0).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.Identity{}, fmt.Errorf("user %d: %w", key.UserID, domain.ErrNotFound)
	}
	if err != nil {
		return account.Identity{}, fmt.Errorf("find user %d: %w", key.UserID, err)
	}

	groups := make([]int64, 0)
	if err := tx.Model(&userGroup{}).Where("user_id = ?", u.ID).Order("group_id").
		Pluck("group_id", &groups).Error; err != nil {
		return account.Identity{}, fmt.Errorf("find groups of user %d: %w", u.ID, err)
	}

	return account.Identity{
		User: account.User{
			ID:       u.ID,
			Username: u.Username,
			Name:     u.Name,
			Email:    u.Email,
		},
		Groups: groups,
	}, nil
}
