package forum

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ayush/bugdex-forum/backend/internal/apperr"
	"github.com/ayush/bugdex-forum/backend/internal/auth"
	"github.com/ayush/bugdex-forum/backend/internal/middleware"
	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/response"
)

const (
	rankingWindow = 7 * 24 * time.Hour
	rankingSize   = 10
)

// GetProfile returns a user's public fields and posts.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		response.Fail(w, http.StatusBadRequest, "username is required")
		return
	}

	ctx := r.Context()
	user, err := h.users.Get(ctx, username)
	if err != nil {
		response.Error(w, r, notFound(err, "user not found"))
		return
	}
	posts, err := h.posts.ByAuthor(ctx, username)
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to load user posts", err))
		return
	}

	response.JSON(w, http.StatusOK, struct {
		models.PublicUser
		Posts []*models.Post `json:"posts"`
	}{user.Public(), posts})
}

// UpdateProfile changes the caller's bio and, optionally, username.
// A rename moves the user document with the caller's posts and likes, and
// returns a credential for the new name.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := middleware.Username(ctx)

	user, err := h.users.Get(ctx, current)
	if err != nil {
		response.Error(w, r, notFound(err, "user not found"))
		return
	}

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}

	newName := strings.TrimSpace(req.Username)
	if newName != "" && newName != current {
		if err := auth.ValidateUsername(newName); err != nil {
			response.Error(w, r, err)
			return
		}
		err = h.users.Rename(ctx, user, newName)
		if errors.Is(err, repository.ErrExists) {
			response.Error(w, r, apperr.New(apperr.UsernameTaken, "username already exists"))
			return
		}
		if err != nil {
			response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to update profile", err))
			return
		}
		if err := h.posts.Reassign(ctx, current, newName); err != nil {
			response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to move posts", err))
			return
		}
		if err := h.likes.Reassign(ctx, current, newName); err != nil {
			response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to move likes", err))
			return
		}
	} else if err := h.users.Save(ctx, user); err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to update profile", err))
		return
	}

	token, err := h.tokens.Encode(user)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"username": user.Username,
		"bio":      user.Bio,
		"token":    token,
	})
}

// Weekly ranks authors by posts created in the last seven days.
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.All(r.Context())
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to load ranking", err))
		return
	}
	response.JSON(w, http.StatusOK, rank(posts, h.now().Add(-rankingWindow)))
}

func rank(posts []*models.Post, since time.Time) []models.RankEntry {
	counts := map[string]int{}
	for _, p := range posts {
		if !p.CreatedAt.Before(since) {
			counts[p.Username]++
		}
	}
	out := make([]models.RankEntry, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.RankEntry{Username: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Username < out[j].Username
	})
	if len(out) > rankingSize {
		out = out[:rankingSize]
	}
	return out
}

// SearchUsers matches the keyword against usernames and bios.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Search(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "search failed", err))
		return
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	response.JSON(w, http.StatusOK, map[string]any{"data": out})
}
