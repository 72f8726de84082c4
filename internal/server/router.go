package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ayush/bugdex-forum/backend/internal/auth"
	"github.com/ayush/bugdex-forum/backend/internal/config"
	"github.com/ayush/bugdex-forum/backend/internal/forum"
	"github.com/ayush/bugdex-forum/backend/internal/middleware"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/response"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

type options struct {
	githubEndpoints []string
}

// Option customises NewRouter.
type Option func(*options)

// WithGitHubEndpoints replaces GitHub's authorize, token and API URLs.
func WithGitHubEndpoints(authURL, tokenURL, apiURL string) Option {
	return func(o *options) { o.githubEndpoints = []string{authURL, tokenURL, apiURL} }
}

// NewRouter wires every handler onto a chi router.
func NewRouter(cfg *config.Config, kv store.KV, files store.FileStore, mailer auth.Mailer, opts ...Option) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	repos := repository.New(kv)
	tokens := auth.NewTokenEncoder(cfg.JWTSecret)

	authHandler := auth.NewHandler(repos.Users, repos.Codes, tokens, mailer, cfg.Production())
	github := auth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, repos.Users, auth.NewStateStore(kv), tokens)
	if e := o.githubEndpoints; e != nil {
		github.WithEndpoints(e[0], e[1], e[2])
	}
	forumHandler := forum.NewHandler(repos, files, tokens)
	requireAuth := middleware.RequireAuth(tokens, repos.Users)
	codeLimit := middleware.NewRateLimiter(cfg.EmailCodeRate)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, http.StatusNotFound, "endpoint not found")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/uploads/*", forumHandler.ServeUpload)

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"message":   "BugDex API is running",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})

		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.With(codeLimit.Handler).Post("/send_email_code", authHandler.SendEmailCode)
		r.Get("/auth/github/login", github.Login)
		r.Get("/auth/github/callback", github.Callback)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", forumHandler.ListPosts)
			r.Get("/{id}/comments", forumHandler.ListComments)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", forumHandler.CreatePost)
				r.Post("/{id}/like", forumHandler.Like)
				r.Post("/{id}/comments", forumHandler.AddComment)
				r.Delete("/{id}/delete", forumHandler.DeletePost)
			})
		})

		r.Get("/search/posts", forumHandler.SearchPosts)
		r.Get("/search/users", forumHandler.SearchUsers)
		r.Get("/user/profile", forumHandler.GetProfile)
		r.With(requireAuth).Put("/user/profile", forumHandler.UpdateProfile)
		r.Get("/weekly", forumHandler.Weekly)
	})

	return r
}
