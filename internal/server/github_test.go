package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gh-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         42,
			"login":      "octocat",
			"avatar_url": "https://avatars.example/octocat.png",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func githubApp(t *testing.T) *testApp {
	t.Helper()
	gh := fakeGitHub(t)
	cfg := testConfig()
	cfg.GitHubClientID = "client-id"
	cfg.GitHubClientSecret = "client-secret"
	return newTestApp(t, cfg, WithGitHubEndpoints(
		gh.URL+"/login/oauth/authorize", gh.URL+"/login/oauth/access_token", gh.URL))
}

func startLogin(t *testing.T, app *testApp) url.Values {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/github/login", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Query()
}

func callback(t *testing.T, app *testApp, code, state string) *url.URL {
	t.Helper()
	q := url.Values{"code": {code}, "state": {state}}
	rec := app.do(t, http.MethodGet, "/api/auth/github/callback?"+q.Encode(), nil, "")
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc
}

func TestGitHubLoginFlow(t *testing.T) {
	app := githubApp(t)

	q := startLogin(t, app)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "user:email", q.Get("scope"))
	assert.Equal(t, "https://example.com/api/auth/github/callback", q.Get("redirect_uri"))
	require.NotEmpty(t, q.Get("state"))

	loc := callback(t, app, "good-code", q.Get("state"))
	assert.Equal(t, "/", loc.Path)
	assert.Empty(t, loc.Query().Get("error"))
	assert.Equal(t, "gh_octocat", loc.Query().Get("username"))

	claims, err := app.tokens.Decode(loc.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "gh_octocat", claims.Username)
	assert.Equal(t, "https://avatars.example/octocat.png", claims.AvatarURL)

	u, err := app.repos.Users.Get(context.Background(), "gh_octocat")
	require.NoError(t, err)
	assert.Equal(t, "octocat@github.local", u.Email)
	assert.Equal(t, "GitHub user octocat", u.Bio)
	assert.EqualValues(t, 42, u.GitHubID)

	assert.Equal(t, u.ID, claims.Subject)

	// a state can only be used once
	loc = callback(t, app, "good-code", q.Get("state"))
	assert.NotEmpty(t, loc.Query().Get("error"))

	// a second login reuses the account
	loc = callback(t, app, "good-code", startLogin(t, app).Get("state"))
	assert.Empty(t, loc.Query().Get("error"))
	again, err := app.repos.Users.Get(context.Background(), "gh_octocat")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestGitHubLoginDoesNotTakeOverLocalAccount(t *testing.T) {
	app := githubApp(t)
	app.user(t, "gh_octocat", "squatter-pw")

	loc := callback(t, app, "good-code", startLogin(t, app).Get("state"))
	assert.Equal(t, "username is linked to another GitHub account", loc.Query().Get("error"))
	assert.Empty(t, loc.Query().Get("token"))

	u, err := app.repos.Users.Get(context.Background(), "gh_octocat")
	require.NoError(t, err)
	assert.Zero(t, u.GitHubID)
	assert.Empty(t, u.AvatarURL)
}

func TestGitHubCallbackRejections(t *testing.T) {
	app := githubApp(t)

	loc := callback(t, app, "good-code", "never-issued")
	assert.Equal(t, "invalid or expired oauth state", loc.Query().Get("error"))
	assert.Empty(t, loc.Query().Get("token"))

	q := startLogin(t, app)
	loc = callback(t, app, "bad-code", q.Get("state"))
	assert.NotEmpty(t, loc.Query().Get("error"))

	rec := app.do(t, http.MethodGet, "/api/auth/github/callback?state=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGitHubUnconfigured(t *testing.T) {
	app := newTestApp(t, testConfig())
	rec := app.do(t, http.MethodGet, "/api/auth/github/login", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/auth/github/callback?code=x", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
