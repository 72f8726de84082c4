package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/bugdex-forum/backend/internal/auth"
	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

type userMap map[string]*models.User

func (m userMap) Get(_ context.Context, username string) (*models.User, error) {
	if username == "broken" {
		return nil, errors.New("kv down")
	}
	u, ok := m[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func protected(t *testing.T, tokens *auth.TokenEncoder, users userMap) http.Handler {
	t.Helper()
	return RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Username(r.Context())))
	}))
}

func TestRequireAuth(t *testing.T) {
	tokens := auth.NewTokenEncoder("secret")
	alice := &models.User{ID: "id-alice", Username: "alice"}
	users := userMap{"alice": alice, "bob": {ID: "id-bob-2", Username: "bob"}}
	h := protected(t, tokens, users)

	encode := func(u *models.User) string {
		tok, err := tokens.Encode(u)
		require.NoError(t, err)
		return tok
	}
	tok := encode(alice)
	staleBob := encode(&models.User{ID: "id-bob-1", Username: "bob"})
	ghost := encode(&models.User{ID: "id-ghost", Username: "ghost"})
	broken := encode(&models.User{ID: "id-broken", Username: "broken"})

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + tok, http.StatusOK, "alice"},
		{"lowercase scheme", "bearer " + tok, http.StatusOK, "alice"},
		{"missing", "", http.StatusUnauthorized, "please log in first"},
		{"wrong scheme", "Basic " + tok, http.StatusUnauthorized, "invalid authorization header"},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, "invalid or expired token"},
		{"name reused by another account", "Bearer " + staleBob, http.StatusUnauthorized, "invalid or expired token"},
		{"account gone", "Bearer " + ghost, http.StatusUnauthorized, "invalid or expired token"},
		{"lookup fails", "Bearer " + broken, http.StatusInternalServerError, "failed to load user"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(2)
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/send_email_code", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:3333"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111"))
}
