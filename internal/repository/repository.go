// Package repository maps forum entities onto keys of a store.KV.
//
// Every entity is a JSON document under a fixed prefix. Secondary lookups
// (comments of a post, posts of an author) go through empty marker keys
// under idx: so that no query has to scan a whole entity prefix.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayush/bugdex-forum/backend/internal/store"
)

var (
	// ErrExists is returned when a create would overwrite an existing document.
	ErrExists = errors.New("already exists")
	// ErrConflict is returned when a conditional update keeps losing races.
	ErrConflict = errors.New("too many concurrent updates")
)

const (
	userPrefix         = "user:"
	postPrefix         = "post:"
	commentPrefix      = "comment:"
	likePrefix         = "like:"
	emailCodePrefix    = "email_code:"
	postCommentsPrefix = "idx:post_comments:"
	userPostsPrefix    = "idx:user_posts:"
	userLikesPrefix    = "idx:user_likes:"

	maxCASAttempts = 10
	maxIDAttempts  = 50
)

var marker = []byte("{}")

// Repositories bundles every entity repository over one KV.
type Repositories struct {
	Users    *Users
	Posts    *Posts
	Comments *Comments
	Likes    *Likes
	Codes    *EmailCodes
}

func New(kv store.KV) *Repositories {
	return NewWithClock(kv, time.Now)
}

// NewWithClock is New with an explicit clock for ids and timestamps.
func NewWithClock(kv store.KV, now func() time.Time) *Repositories {
	return &Repositories{
		Users:    &Users{kv: kv, now: now},
		Posts:    &Posts{kv: kv, now: now},
		Comments: &Comments{kv: kv, now: now},
		Likes:    &Likes{kv: kv, now: now},
		Codes:    &EmailCodes{kv: kv, now: now},
	}
}

func getJSON[T any](ctx context.Context, kv store.KV, key string) (*T, error) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

func putJSON(ctx context.Context, kv store.KV, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, data, ttl)
}

// loadAll fetches every key, skipping entries that vanished since listing.
func loadAll[T any](ctx context.Context, kv store.KV, keys []string) ([]*T, error) {
	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		v, err := getJSON[T](ctx, kv, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// indexed resolves the marker keys under idx into entity keys under entity.
func indexed(ctx context.Context, kv store.KV, idx, entity string) ([]string, error) {
	markers, err := kv.List(ctx, idx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", idx, err)
	}
	keys := make([]string, 0, len(markers))
	for _, m := range markers {
		keys = append(keys, entity+strings.TrimPrefix(m, idx))
	}
	return keys, nil
}

// createWithID stores v under prefix+id, where id is "<kind>_<ms>" and ms
// starts at start and moves forward one millisecond per collision.
func createWithID(ctx context.Context, kv store.KV, prefix, kind string, start int64, build func(id string) any) (string, error) {
	for i := int64(0); i < maxIDAttempts; i++ {
		id := fmt.Sprintf("%s_%d", kind, start+i)
		data, err := json.Marshal(build(id))
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", kind, err)
		}
		ok, err := kv.SetNX(ctx, prefix+id, data, 0)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", kind, err)
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("create %s: %w", kind, ErrConflict)
}

func deleteAll(ctx context.Context, kv store.KV, keys []string) error {
	for _, key := range keys {
		if err := kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
