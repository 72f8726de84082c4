package forum

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/bugdex-forum/backend/internal/apperr"
	"github.com/ayush/bugdex-forum/backend/internal/middleware"
	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/response"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

const (
	defaultPage = 1
	defaultSize = 10
	maxSize     = 100
)

// PostStore defines the post persistence the handlers need.
type PostStore interface {
	Create(ctx context.Context, p *models.Post) error
	Get(ctx context.Context, id string) (*models.Post, error)
	All(ctx context.Context) ([]*models.Post, error)
	ByAuthor(ctx context.Context, username string) ([]*models.Post, error)
	Search(ctx context.Context, keyword string) ([]*models.Post, error)
	IncrementLikes(ctx context.Context, id string) (int, error)
	Reassign(ctx context.Context, from, to string) error
	Delete(ctx context.Context, p *models.Post) error
}

type CommentStore interface {
	Create(ctx context.Context, c *models.Comment) error
	ByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	DeleteByPost(ctx context.Context, postID string) (int, error)
}

type LikeStore interface {
	Add(ctx context.Context, postID, username string) error
	Remove(ctx context.Context, postID, username string) error
	Reassign(ctx context.Context, from, to string) error
	DeleteByPost(ctx context.Context, postID string) (int, error)
}

type UserStore interface {
	Get(ctx context.Context, username string) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
	Rename(ctx context.Context, u *models.User, newName string) error
	Search(ctx context.Context, keyword string) ([]*models.User, error)
}

// TokenIssuer issues a credential after a rename.
type TokenIssuer interface {
	Encode(u *models.User) (string, error)
}

// Handler holds the post, comment, like, search and profile handlers.
type Handler struct {
	posts    PostStore
	comments CommentStore
	likes    LikeStore
	users    UserStore
	files    store.FileStore
	tokens   TokenIssuer
	now      func() time.Time
}

func NewHandler(repos *repository.Repositories, files store.FileStore, tokens TokenIssuer) *Handler {
	return &Handler{
		posts:    repos.Posts,
		comments: repos.Comments,
		likes:    repos.Likes,
		users:    repos.Users,
		files:    files,
		tokens:   tokens,
		now:      time.Now,
	}
}

// ListPosts returns one page of posts, newest first.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.All(r.Context())
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to load posts", err))
		return
	}
	page, size := pagination(r)
	response.JSON(w, http.StatusOK, models.Page[*models.Post]{Total: len(posts), Data: paginate(posts, page, size)})
}

// CreatePost accepts multipart (with attachments) or JSON bodies.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		req     models.CreatePostRequest
		uploads []*upload
		err     error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, uploads, err = readMultipartPost(w, r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			err = apperr.Wrap(apperr.InvalidInput, "invalid request body", err)
		}
	}
	if err != nil {
		response.Error(w, r, err)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		response.Error(w, r, apperr.New(apperr.InvalidInput, "title is required"))
		return
	}

	post := &models.Post{
		Title:        req.Title,
		Content:      req.Content,
		Username:     middleware.Username(ctx),
		ImageURL:     req.ImageURL,
		CodefileURL:  req.CodefileURL,
		CodefileName: req.CodefileName,
		CreatedAt:    h.now().UTC(),
	}

	for _, u := range uploads {
		if err := h.files.Upload(ctx, u.key, u.data, u.contentType); err != nil {
			h.removeUploads(ctx, uploads)
			response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to store attachment", err))
			return
		}
		post.AttachmentKeys = append(post.AttachmentKeys, u.key)
		switch u.kind {
		case kindImage:
			post.ImageURL = u.url()
		case kindCode:
			post.CodefileURL = u.url()
			post.CodefileName = u.name
		}
	}

	if err := h.posts.Create(ctx, post); err != nil {
		h.removeUploads(ctx, uploads)
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to create post", err))
		return
	}
	response.JSON(w, http.StatusOK, post)
}

// Like records the caller's like and bumps the post's counter.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID := chi.URLParam(r, "id")
	username := middleware.Username(ctx)

	if _, err := h.posts.Get(ctx, postID); err != nil {
		response.Error(w, r, notFound(err, "post not found"))
		return
	}

	err := h.likes.Add(ctx, postID, username)
	if errors.Is(err, repository.ErrExists) {
		response.Error(w, r, apperr.New(apperr.AlreadyLiked, "already liked"))
		return
	}
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to like post", err))
		return
	}

	count, err := h.posts.IncrementLikes(ctx, postID)
	if err != nil {
		if rmErr := h.likes.Remove(ctx, postID, username); rmErr != nil {
			slog.Error("roll back like", "post", postID, "user", username, "err", rmErr)
		}
		response.Error(w, r, notFound(err, "post not found"))
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"success": true, "likes_count": count})
}

// AddComment stores a comment; the post is not required to exist.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req models.CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		response.Fail(w, http.StatusBadRequest, "comment content is required")
		return
	}

	c := &models.Comment{
		PostID:    chi.URLParam(r, "id"),
		Username:  middleware.Username(r.Context()),
		Content:   req.Content,
		CreatedAt: h.now().UTC(),
	}
	if err := h.comments.Create(r.Context(), c); err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to add comment", err))
		return
	}
	response.JSON(w, http.StatusOK, c)
}

// ListComments returns one page of a post's comments, newest first.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ByPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to load comments", err))
		return
	}
	page, size := pagination(r)
	response.JSON(w, http.StatusOK, models.Page[*models.Comment]{Total: len(comments), Data: paginate(comments, page, size)})
}

// DeletePost removes an owned post with its comments, likes and attachments.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := h.posts.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, notFound(err, "post not found"))
		return
	}
	if post.Username != middleware.Username(ctx) {
		response.Error(w, r, apperr.New(apperr.Forbidden, "you do not have permission to delete this post"))
		return
	}

	comments, err := h.comments.DeleteByPost(ctx, post.ID)
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to delete comments", err))
		return
	}
	likes, err := h.likes.DeleteByPost(ctx, post.ID)
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to delete likes", err))
		return
	}
	for _, key := range post.AttachmentKeys {
		if err := h.files.Remove(ctx, key); err != nil {
			slog.Warn("remove attachment", "key", key, "err", err)
		}
	}
	if err := h.posts.Delete(ctx, post); err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to delete post", err))
		return
	}

	slog.Info("post deleted", "post", post.ID, "comments", comments, "likes", likes)
	response.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "post deleted"})
}

// SearchPosts matches the keyword against titles and contents.
func (h *Handler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Search(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "search failed", err))
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"data": posts})
}

func notFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.NotFound, msg)
	}
	return err
}

func pagination(r *http.Request) (page, size int) {
	page, size = defaultPage, defaultSize
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && n > 0 {
		size = min(n, maxSize)
	}
	return page, size
}

// paginate returns items[(page-1)*size : page*size], clamped.
// The page is compared against the page count first so huge page numbers
// cannot overflow the offset.
func paginate[T any](items []T, page, size int) []T {
	pages := (len(items) + size - 1) / size
	if page-1 >= pages {
		return []T{}
	}
	start := (page - 1) * size
	end := min(start+size, len(items))
	return items[start:end]
}
