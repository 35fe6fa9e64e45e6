package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/kailas-cloud/numistr/internal/domain"
	"github.com/kailas-cloud/numistr/internal/domain/account"
)

type userCtxKey struct{}

// BearerAuthMiddleware resolves "Authorization: Bearer <token>" to an account and stores it in the context.
// Missing, unknown and blocked tokens get 401.
func BearerAuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required", "missing authorization header")
				return
			}
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required",
					"authorization header must use Bearer scheme")
				return
			}

			u, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrAuthRequired) {
					writeError(w, http.StatusUnauthorized, "Authentication required", "invalid api token")
					return
				}
				handleError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, u)))
		})
	}
}

// userFromContext returns the account stored by BearerAuthMiddleware.
func userFromContext(ctx context.Context) (account.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(account.User)
	return u, ok
}
