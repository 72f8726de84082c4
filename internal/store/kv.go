package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// KV is the key-value collaborator every repository is built on.
// Implementations hide expired entries from Get and List.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes value only if key is absent (or expired) and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// CompareAndSwap replaces the value of key with next only if it still equals prev.
	// It returns ErrNotFound if key does not exist.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)
	Delete(ctx context.Context, key string) error
	// List returns every live key starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// expiresAt converts a ttl into unix milliseconds, 0 meaning "never".
func expiresAt(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).UnixMilli()
}

// likePrefix escapes a prefix for a SQL LIKE pattern with '\' as escape char.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
