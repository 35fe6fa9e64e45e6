package account

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/account"
)

// --- Mock ---

type mockRepo struct {
	findFn func(ctx context.Context, token string) (account.Identity, error)
	calls  int
}

func (m *mockRepo) FindByToken(ctx context.Context, token string) (account.Identity, error) {
	m.calls++
	if m.findFn != nil {
		return m.findFn(ctx, token)
	}
	return account.Identity{}, domain.ErrNotFound
}

// --- Tests ---

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name   string
		groups []int64
		want   account.Tier
	}{
		{"free", []int64{2}, account.Free},
		{"pro", []int64{2, 10}, account.Pro},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{findFn: func(_ context.Context, token string) (account.Identity, error) {
				if token != "tok" {
					t.Errorf("token = %q", token)
				}
				return account.Identity{User: account.User{ID: 7, Username: "numa"}, Groups: tt.groups}, nil
			}}

			u, err := New(repo, 10).Authenticate(context.Background(), "tok")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.ID != 7 || u.Username != "numa" || u.Tier != tt.want {
				t.Errorf("unexpected user %+v", u)
			}
		})
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	repo := &mockRepo{}
	_, err := New(repo, 10).Authenticate(context.Background(), "")
	if !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if repo.calls != 0 {
		t.Error("repository queried without a token")
	}
}

func TestAuthenticate_UnknownToken(t *testing.T) {
	_, err := New(&mockRepo{}, 10).Authenticate(context.Background(), "nope")
	if !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestAuthenticate_StorageError(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &mockRepo{findFn: func(context.Context, string) (account.Identity, error) {
		return account.Identity{}, boom
	}}

	_, err := New(repo, 10).Authenticate(context.Background(), "tok")
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
