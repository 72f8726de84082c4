package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

// Likes stores like:<postId>:<username> documents.
type Likes struct {
	kv  store.KV
	now func() time.Time
}

func likeKey(postID, username string) string {
	return likePrefix + postID + ":" + username
}

func userLikeMarker(username, postID string) string {
	return userLikesPrefix + username + ":" + postID
}

// Add records that username liked postID. It returns ErrExists if the
// like is already there, including when a concurrent request won.
func (r *Likes) Add(ctx context.Context, postID, username string) error {
	like := models.Like{PostID: postID, Username: username, CreatedAt: r.now().UTC()}
	data, err := json.Marshal(like)
	if err != nil {
		return fmt.Errorf("encode like: %w", err)
	}
	ok, err := r.kv.SetNX(ctx, likeKey(postID, username), data, 0)
	if err != nil {
		return fmt.Errorf("create like: %w", err)
	}
	if !ok {
		return ErrExists
	}
	if err := r.kv.Set(ctx, userLikeMarker(username, postID), marker, 0); err != nil {
		return fmt.Errorf("index like: %w", err)
	}
	return nil
}

// Remove deletes a single like.
func (r *Likes) Remove(ctx context.Context, postID, username string) error {
	return deleteAll(ctx, r.kv, []string{likeKey(postID, username), userLikeMarker(username, postID)})
}

// Reassign moves every like by from over to to. A like that to already
// holds on the same post wins and from's copy is dropped.
func (r *Likes) Reassign(ctx context.Context, from, to string) error {
	markers, err := r.kv.List(ctx, userLikesPrefix+from+":")
	if err != nil {
		return fmt.Errorf("list likes of %s: %w", from, err)
	}
	for _, m := range markers {
		postID := strings.TrimPrefix(m, userLikesPrefix+from+":")
		like, err := getJSON[models.Like](ctx, r.kv, likeKey(postID, from))
		if errors.Is(err, store.ErrNotFound) {
			if err := r.kv.Delete(ctx, m); err != nil {
				return fmt.Errorf("delete %s: %w", m, err)
			}
			continue
		}
		if err != nil {
			return err
		}

		like.Username = to
		data, err := json.Marshal(like)
		if err != nil {
			return fmt.Errorf("encode like: %w", err)
		}
		if _, err := r.kv.SetNX(ctx, likeKey(postID, to), data, 0); err != nil {
			return fmt.Errorf("move like on %s: %w", postID, err)
		}
		if err := r.kv.Set(ctx, userLikeMarker(to, postID), marker, 0); err != nil {
			return fmt.Errorf("index like: %w", err)
		}
		if err := r.Remove(ctx, postID, from); err != nil {
			return err
		}
	}
	return nil
}

// ByPost returns the likes on postID.
func (r *Likes) ByPost(ctx context.Context, postID string) ([]*models.Like, error) {
	keys, err := r.kv.List(ctx, likePrefix+postID+":")
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	return loadAll[models.Like](ctx, r.kv, keys)
}

// DeleteByPost removes every like on postID along with the likers' markers.
func (r *Likes) DeleteByPost(ctx context.Context, postID string) (int, error) {
	prefix := likePrefix + postID + ":"
	keys, err := r.kv.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list likes: %w", err)
	}
	for _, key := range keys {
		username := strings.TrimPrefix(key, prefix)
		if err := deleteAll(ctx, r.kv, []string{key, userLikeMarker(username, postID)}); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
