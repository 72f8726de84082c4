package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/response"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

const (
	githubAPIURL = "https://api.github.com"
	callbackPath = "/api/auth/github/callback"

	// GitHubUserPrefix prefixes the local username of every GitHub account.
	GitHubUserPrefix = "gh_"
)

var errAccountMismatch = errors.New("account is linked to another GitHub user")

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// GitHub runs the OAuth login flow against GitHub.
type GitHub struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	apiURL       string

	users  UserStore
	states *StateStore
	tokens *TokenEncoder
}

func NewGitHub(clientID, clientSecret string, users UserStore, states *StateStore, tokens *TokenEncoder) *GitHub {
	return &GitHub{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     github.Endpoint,
		apiURL:       githubAPIURL,
		users:        users,
		states:       states,
		tokens:       tokens,
	}
}

// WithEndpoints points the flow at other authorize, token and API servers.
func (g *GitHub) WithEndpoints(authURL, tokenURL, apiURL string) *GitHub {
	g.endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	g.apiURL = strings.TrimRight(apiURL, "/")
	return g
}

func (g *GitHub) config(r *http.Request) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Endpoint:     g.endpoint,
		RedirectURL:  requestOrigin(r) + callbackPath,
		Scopes:       []string{"user:email"},
	}
}

// Login redirects the browser to GitHub's authorize page.
func (g *GitHub) Login(w http.ResponseWriter, r *http.Request) {
	if g.clientID == "" {
		response.Fail(w, http.StatusInternalServerError, "GitHub OAuth is not configured")
		return
	}
	state, err := g.states.Issue(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	http.Redirect(w, r, g.config(r).AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the flow and redirects to the app with a credential.
func (g *GitHub) Callback(w http.ResponseWriter, r *http.Request) {
	if g.clientID == "" || g.clientSecret == "" {
		response.Fail(w, http.StatusInternalServerError, "GitHub OAuth is not configured")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		response.Fail(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	ctx := r.Context()
	ok, err := g.states.Consume(ctx, r.URL.Query().Get("state"))
	if err != nil {
		redirectError(w, r, "github login failed", err)
		return
	}
	if !ok {
		redirectError(w, r, "invalid or expired oauth state", nil)
		return
	}

	cfg := g.config(r)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		redirectError(w, r, "failed to exchange authorization code", err)
		return
	}

	gh, err := g.fetchUser(cfg.Client(ctx, tok))
	if err != nil {
		redirectError(w, r, "failed to fetch GitHub profile", err)
		return
	}

	user, err := g.upsert(r, gh)
	if errors.Is(err, errAccountMismatch) {
		redirectError(w, r, "username is linked to another GitHub account", err)
		return
	}
	if err != nil {
		redirectError(w, r, "failed to save user", err)
		return
	}

	credential, err := g.tokens.Encode(user)
	if err != nil {
		redirectError(w, r, "failed to issue credential", err)
		return
	}
	q := url.Values{"token": {credential}, "username": {user.Username}}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}

func (g *GitHub) fetchUser(client *http.Client) (*githubUser, error) {
	resp, err := client.Get(g.apiURL + "/user")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("github /user returned %d: %s", resp.StatusCode, body)
	}

	var gh githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, fmt.Errorf("github /user: decode: %w", err)
	}
	if gh.Login == "" {
		return nil, errors.New("github /user: empty login")
	}
	return &gh, nil
}

// upsert creates gh_<login> on first login and refreshes avatar and bio afterwards.
// An existing gh_<login> account bound to another GitHub id is never taken over.
func (g *GitHub) upsert(r *http.Request, gh *githubUser) (*models.User, error) {
	ctx := r.Context()
	username := GitHubUserPrefix + gh.Login

	user, err := g.users.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		user = &models.User{
			Username:  username,
			Email:     gh.Email,
			Bio:       gh.Bio,
			AvatarURL: gh.AvatarURL,
			GitHubID:  gh.ID,
		}
		if user.Email == "" {
			user.Email = gh.Login + "@github.local"
		}
		if user.Bio == "" {
			user.Bio = "GitHub user " + gh.Login
		}
		err = g.users.Create(ctx, user)
		if !errors.Is(err, repository.ErrExists) {
			return user, err
		}
		user, err = g.users.Get(ctx, username)
	}
	if err != nil {
		return nil, err
	}
	if user.GitHubID != gh.ID {
		return nil, fmt.Errorf("%w: %s belongs to github id %d, not %d", errAccountMismatch, username, user.GitHubID, gh.ID)
	}

	user.AvatarURL = gh.AvatarURL
	if gh.Bio != "" {
		user.Bio = gh.Bio
	}
	return user, g.users.Save(ctx, user)
}

func redirectError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if err != nil {
		slog.Error("github oauth", "msg", msg, "err", err)
	}
	http.Redirect(w, r, "/?error="+url.QueryEscape(msg), http.StatusFound)
}

// requestOrigin rebuilds scheme://host for the incoming request.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}
