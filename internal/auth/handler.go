package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/bugdex-forum/backend/internal/apperr"
	"github.com/ayush/bugdex-forum/backend/internal/mail"
	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/response"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

// DefaultBio is given to every newly registered user.
const DefaultBio = `This is your bio. Edit it from the user center.`

// UserStore defines the user persistence the auth handlers need.
type UserStore interface {
	Get(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Save(ctx context.Context, u *models.User) error
}

// CodeStore keeps registration codes.
type CodeStore interface {
	Put(ctx context.Context, email, code string) (*models.EmailCode, error)
	Get(ctx context.Context, email string) (*models.EmailCode, error)
	Delete(ctx context.Context, email string) error
}

// Mailer delivers a single email.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Handler holds the password and email-code auth handlers.
type Handler struct {
	users      UserStore
	codes      CodeStore
	tokens     *TokenEncoder
	mailer     Mailer
	production bool
	now        func() time.Time
}

func NewHandler(users UserStore, codes CodeStore, tokens *TokenEncoder, mailer Mailer, production bool) *Handler {
	return &Handler{
		users:      users,
		codes:      codes,
		tokens:     tokens,
		mailer:     mailer,
		production: production,
		now:        time.Now,
	}
}

// Login checks a username/password pair and issues a credential.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Get(r.Context(), req.Username)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !checkPassword(user.Password, req.Password)) {
		response.Fail(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		response.Error(w, r, err)
		return
	}

	token, err := h.tokens.Encode(user)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    user.Public(),
	})
}

// Register creates a user after checking the emailed code.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Code == "" {
		response.Fail(w, http.StatusBadRequest, "username, email, password and code are required")
		return
	}
	if err := ValidateUsername(req.Username); err != nil {
		response.Error(w, r, err)
		return
	}

	ctx := r.Context()
	ec, err := h.codes.Get(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) ||
		(err == nil && subtle.ConstantTimeCompare([]byte(ec.Code), []byte(req.Code)) != 1) {
		response.Error(w, r, apperr.New(apperr.InvalidCode, "invalid or expired verification code"))
		return
	}
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if ec.Expired(h.now()) {
		response.Error(w, r, apperr.New(apperr.InvalidCode, "verification code has expired"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Error(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	err = h.users.Create(ctx, &models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		Bio:       DefaultBio,
		CreatedAt: h.now().UTC(),
	})
	if errors.Is(err, repository.ErrExists) {
		response.Error(w, r, apperr.New(apperr.UsernameTaken, "username already exists"))
		return
	}
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if err := h.codes.Delete(ctx, req.Email); err != nil {
		slog.Warn("delete used email code", "email", req.Email, "err", err)
	}
	response.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "registration successful"})
}

// SendEmailCode stores a fresh code for the email and mails it.
func (h *Handler) SendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req models.SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		response.Fail(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	code, err := newCode()
	if err != nil {
		response.Error(w, r, err)
		return
	}
	ctx := r.Context()
	if _, err := h.codes.Put(ctx, email, code); err != nil {
		response.Error(w, r, err)
		return
	}

	err = h.mailer.Send(ctx, mail.CodeMessage(email, code))
	if err == nil {
		response.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "verification code sent"})
		return
	}
	if h.production {
		response.Error(w, r, apperr.Wrap(apperr.Internal, "failed to send verification code", err))
		return
	}
	slog.Warn("email dispatch failed, returning code in response", "email", email, "err", err)
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "verification code sent (simulated)",
		"debug":   true,
		"code":    code,
	})
}

// ValidateUsername rejects names that cannot be used as a key segment and
// names in the namespace reserved for GitHub accounts.
func ValidateUsername(name string) error {
	if len(name) > 64 || strings.ContainsAny(name, ": \t\r\n/") {
		return apperr.New(apperr.InvalidInput, "username must be at most 64 characters without spaces, ':' or '/'")
	}
	if strings.HasPrefix(strings.ToLower(name), GitHubUserPrefix) {
		return apperr.New(apperr.InvalidInput, "usernames starting with "+GitHubUserPrefix+" are reserved for GitHub accounts")
	}
	return nil
}

// checkPassword accepts bcrypt hashes and, for older documents, plaintext.
func checkPassword(stored, given string) bool {
	if stored == "" || given == "" {
		return false
	}
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// newCode returns a uniform random code in [100000, 999999].
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
