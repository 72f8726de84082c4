package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ayush/bugdex-forum/backend/internal/apperr"
	"github.com/ayush/bugdex-forum/backend/internal/auth"
	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/response"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

type contextKey string

const claimsKey contextKey = "claims"

// Decoder verifies a bearer credential.
type Decoder interface {
	Decode(credential string) (*auth.Claims, error)
}

// UserLookup loads the account a credential names.
type UserLookup interface {
	Get(ctx context.Context, username string) (*models.User, error)
}

// RequireAuth validates the Authorization: Bearer header, checks that the
// named account still belongs to the credential's subject, and injects the
// claims into the request context.
func RequireAuth(tokens Decoder, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				response.Fail(w, http.StatusUnauthorized, "please log in first")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				response.Fail(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := tokens.Decode(strings.TrimSpace(parts[1]))
			if err != nil {
				response.Fail(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user, err := users.Get(r.Context(), claims.Username)
			if errors.Is(err, store.ErrNotFound) || (err == nil && user.ID != claims.Subject) {
				response.Fail(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if err != nil {
				response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to load user", err))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Claims returns the claims injected by RequireAuth.
func Claims(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// Username returns the authenticated username, or "" outside RequireAuth.
func Username(ctx context.Context) string {
	if c, ok := Claims(ctx); ok {
		return c.Username
	}
	return ""
}
