package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

// Comments stores comment:<id> documents and the per-post index.
type Comments struct {
	kv  store.KV
	now func() time.Time
}

func commentMarker(postID, commentID string) string {
	return postCommentsPrefix + postID + ":" + commentID
}

// Create assigns c an id and timestamp and stores it with its post marker.
func (r *Comments) Create(ctx context.Context, c *models.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	id, err := createWithID(ctx, r.kv, commentPrefix, "comment", c.CreatedAt.UnixMilli(), func(id string) any {
		c.ID = id
		return c
	})
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, commentMarker(c.PostID, id), marker, 0); err != nil {
		return fmt.Errorf("index comment %s: %w", id, err)
	}
	return nil
}

// ByPost returns the comments on postID, newest first.
func (r *Comments) ByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	keys, err := indexed(ctx, r.kv, postCommentsPrefix+postID+":", commentPrefix)
	if err != nil {
		return nil, err
	}
	comments, err := loadAll[models.Comment](ctx, r.kv, keys)
	if err != nil {
		return nil, err
	}
	out := comments[:0]
	for _, c := range comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// DeleteByPost removes every comment on postID and its marker.
func (r *Comments) DeleteByPost(ctx context.Context, postID string) (int, error) {
	idx := postCommentsPrefix + postID + ":"
	markers, err := r.kv.List(ctx, idx)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", idx, err)
	}
	keys := make([]string, 0, 2*len(markers))
	for _, m := range markers {
		keys = append(keys, commentPrefix+m[len(idx):], m)
	}
	if err := deleteAll(ctx, r.kv, keys); err != nil {
		return 0, err
	}
	return len(markers), nil
}
