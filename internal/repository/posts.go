package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

// Posts stores post:<id> documents and the per-author index.
type Posts struct {
	kv  store.KV
	now func() time.Time
}

func authorMarker(username, postID string) string {
	return userPostsPrefix + username + ":" + postID
}

// Create assigns p an id and timestamp and stores it with its author marker.
func (r *Posts) Create(ctx context.Context, p *models.Post) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	id, err := createWithID(ctx, r.kv, postPrefix, "post", p.CreatedAt.UnixMilli(), func(id string) any {
		p.ID = id
		return p
	})
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, authorMarker(p.Username, id), marker, 0); err != nil {
		return fmt.Errorf("index post %s: %w", id, err)
	}
	return nil
}

func (r *Posts) Get(ctx context.Context, id string) (*models.Post, error) {
	return getJSON[models.Post](ctx, r.kv, postPrefix+id)
}

// All returns every post, newest first.
func (r *Posts) All(ctx context.Context) ([]*models.Post, error) {
	keys, err := r.kv.List(ctx, postPrefix)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts, err := loadAll[models.Post](ctx, r.kv, keys)
	if err != nil {
		return nil, err
	}
	SortPosts(posts)
	return posts, nil
}

// ByAuthor returns the posts of username, newest first.
func (r *Posts) ByAuthor(ctx context.Context, username string) ([]*models.Post, error) {
	keys, err := indexed(ctx, r.kv, userPostsPrefix+username+":", postPrefix)
	if err != nil {
		return nil, err
	}
	posts, err := loadAll[models.Post](ctx, r.kv, keys)
	if err != nil {
		return nil, err
	}
	out := posts[:0]
	for _, p := range posts {
		if p.Username == username {
			out = append(out, p)
		}
	}
	SortPosts(out)
	return out, nil
}

// Search matches keyword against title and content, ignoring case.
func (r *Posts) Search(ctx context.Context, keyword string) ([]*models.Post, error) {
	posts, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	kw := strings.ToLower(keyword)
	out := []*models.Post{}
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), kw) || strings.Contains(strings.ToLower(p.Content), kw) {
			out = append(out, p)
		}
	}
	return out, nil
}

// IncrementLikes adds one to likes_count and returns the new value.
func (r *Posts) IncrementLikes(ctx context.Context, id string) (int, error) {
	var count int
	err := r.update(ctx, id, func(p *models.Post) {
		p.LikesCount++
		count = p.LikesCount
	})
	return count, err
}

// Reassign moves every post of from to the author to, along with the index.
func (r *Posts) Reassign(ctx context.Context, from, to string) error {
	posts, err := r.ByAuthor(ctx, from)
	if err != nil {
		return err
	}
	for _, p := range posts {
		if err := r.update(ctx, p.ID, func(p *models.Post) { p.Username = to }); err != nil {
			return err
		}
		if err := r.kv.Set(ctx, authorMarker(to, p.ID), marker, 0); err != nil {
			return fmt.Errorf("index post %s: %w", p.ID, err)
		}
		if err := r.kv.Delete(ctx, authorMarker(from, p.ID)); err != nil {
			return fmt.Errorf("unindex post %s: %w", p.ID, err)
		}
	}
	return nil
}

// Delete removes the post document and its author marker.
func (r *Posts) Delete(ctx context.Context, p *models.Post) error {
	return deleteAll(ctx, r.kv, []string{postPrefix + p.ID, authorMarker(p.Username, p.ID)})
}

// update applies fn with an optimistic compare-and-swap loop.
func (r *Posts) update(ctx context.Context, id string, fn func(*models.Post)) error {
	key := postPrefix + id
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		prev, err := r.kv.Get(ctx, key)
		if err != nil {
			return err
		}
		var p models.Post
		if err := json.Unmarshal(prev, &p); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		fn(&p)
		next, err := json.Marshal(&p)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if bytes.Equal(prev, next) {
			return nil
		}
		ok, err := r.kv.CompareAndSwap(ctx, key, prev, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("update %s: %w", key, ErrConflict)
}

// SortPosts orders posts newest first, breaking ties by id.
func SortPosts(posts []*models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}
