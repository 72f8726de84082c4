package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/bugdex-forum/backend/internal/models"
)

var demoUsers = []struct {
	username, email, password, bio string
}{
	{"admin", "admin@bugdex.com", "admin123", "Administrator account for exercising every feature"},
	{"test", "test@bugdex.com", "test123", "Test account"},
	{"user", "user@bugdex.com", "user123", "Regular user account"},
}

// SeedDemoUsers creates the demo accounts that do not exist yet.
func SeedDemoUsers(ctx context.Context, users *Users) error {
	for _, d := range demoUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash %s: %w", d.username, err)
		}
		err = users.Create(ctx, &models.User{
			Username: d.username,
			Email:    d.email,
			Password: string(hash),
			Bio:      d.bio,
		})
		if errors.Is(err, ErrExists) {
			continue
		}
		if err != nil {
			return err
		}
		slog.Info("seeded demo user", "username", d.username)
	}
	return nil
}
