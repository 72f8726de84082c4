package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

// Users stores user:<username> documents.
type Users struct {
	kv  store.KV
	now func() time.Time
}

func (r *Users) Get(ctx context.Context, username string) (*models.User, error) {
	return getJSON[models.User](ctx, r.kv, userPrefix+username)
}

// Create writes u only if the username is free; otherwise it returns ErrExists.
// A user without an ID gets a fresh one.
func (r *Users) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	ok, err := r.kv.SetNX(ctx, userPrefix+u.Username, data, 0)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Save overwrites the document for u.Username.
func (r *Users) Save(ctx context.Context, u *models.User) error {
	return putJSON(ctx, r.kv, userPrefix+u.Username, u, 0)
}

// Rename moves u to user:<newName>. The new key is claimed with SetNX
// before the old one is removed; ErrExists means newName is taken.
func (r *Users) Rename(ctx context.Context, u *models.User, newName string) error {
	old := u.Username
	moved := *u
	moved.Username = newName
	if err := r.Create(ctx, &moved); err != nil {
		return err
	}
	if err := r.kv.Delete(ctx, userPrefix+old); err != nil {
		return fmt.Errorf("delete user %s: %w", old, err)
	}
	*u = moved
	return nil
}

// Search returns users whose username or bio contains keyword, ignoring case.
func (r *Users) Search(ctx context.Context, keyword string) ([]*models.User, error) {
	keys, err := r.kv.List(ctx, userPrefix)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := loadAll[models.User](ctx, r.kv, keys)
	if err != nil {
		return nil, err
	}
	kw := strings.ToLower(keyword)
	out := []*models.User{}
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), kw) || strings.Contains(strings.ToLower(u.Bio), kw) {
			out = append(out, u)
		}
	}
	return out, nil
}
