package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

type profile struct {
	Username string        `json:"username"`
	Bio      string        `json:"bio"`
	Posts    []models.Post `json:"posts"`
}

func TestGetProfile(t *testing.T) {
	app := newTestApp(t, testConfig())
	alice := app.user(t, "alice", "pw")
	bob := app.user(t, "bob", "pw")
	app.createPost(t, alice, "mine")
	app.createPost(t, bob, "not mine")

	rec := app.do(t, http.MethodGet, "/api/user/profile", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/user/profile?username=ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/user/profile?username=alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	var p profile
	decode(t, rec, &p)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "bio of alice", p.Bio)
	require.Len(t, p.Posts, 1)
	assert.Equal(t, "mine", p.Posts[0].Title)
}

func TestUpdateProfileBio(t *testing.T) {
	app := newTestApp(t, testConfig())
	alice := app.user(t, "alice", "pw")

	rec := app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"bio": "new bio"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"bio": "new bio"}, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Username string `json:"username"`
		Bio      string `json:"bio"`
		Token    string `json:"token"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, "new bio", body.Bio)

	u, err := app.repos.Users.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "new bio", u.Bio)

	ghost, err := app.tokens.Encode(&models.User{ID: "ghost-id", Username: "ghost"})
	require.NoError(t, err)
	rec = app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"bio": "x"}, ghost)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRenameMigratesUserAndPosts(t *testing.T) {
	app := newTestApp(t, testConfig())
	ctx := context.Background()
	alice := app.user(t, "alice", "pw")
	app.user(t, "bob", "pw")
	post := app.createPost(t, alice, "before rename")

	rec := app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"username": "bob"}, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username already exists", failureOf(t, rec).Message)

	rec = app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"username": "alicia"}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Username string `json:"username"`
		Bio      string `json:"bio"`
		Token    string `json:"token"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "alicia", body.Username)
	assert.Equal(t, "bio of alice", body.Bio)

	claims, err := app.tokens.Decode(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "alicia", claims.Username)

	_, err = app.repos.Users.Get(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
	moved, err := app.repos.Users.Get(ctx, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", moved.Username)

	rec = app.do(t, http.MethodGet, "/api/user/profile?username=alicia", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p profile
	decode(t, rec, &p)
	require.Len(t, p.Posts, 1)
	assert.Equal(t, post.ID, p.Posts[0].ID)

	// the new credential owns the moved post
	rec = app.do(t, http.MethodDelete, "/api/posts/"+post.ID+"/delete", nil, body.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRenameCarriesLikesAndRetiresOldCredential(t *testing.T) {
	app := newTestApp(t, testConfig())
	ctx := context.Background()
	alice := app.user(t, "alice", "pw")
	bob := app.user(t, "bob", "pw")
	post := app.createPost(t, alice, "likeable")

	rec := app.do(t, http.MethodPost, "/api/posts/"+post.ID+"/like", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"username": "bob2"}, bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var renamed struct {
		Token string `json:"token"`
	}
	decode(t, rec, &renamed)

	// the like moved with the account
	rec = app.do(t, http.MethodPost, "/api/posts/"+post.ID+"/like", nil, renamed.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already liked", failureOf(t, rec).Message)
	stored, err := app.repos.Posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LikesCount)

	// the pre-rename credential no longer authenticates
	rec = app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"bio": "x"}, bob)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// nor once someone else takes the freed name
	newBob := app.user(t, "bob", "other-pw")
	rec = app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"bio": "hijacked"}, bob)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	u, err := app.repos.Users.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bio of bob", u.Bio)

	// and the new owner of the name starts without likes
	rec = app.do(t, http.MethodPost, "/api/posts/"+post.ID+"/like", nil, newBob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var liked struct {
		LikesCount int `json:"likes_count"`
	}
	decode(t, rec, &liked)
	assert.Equal(t, 2, liked.LikesCount)
}

func TestRenameRejectsReservedName(t *testing.T) {
	app := newTestApp(t, testConfig())
	alice := app.user(t, "alice", "pw")

	rec := app.do(t, http.MethodPut, "/api/user/profile", map[string]string{"username": "gh_alice"}, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err := app.repos.Users.Get(context.Background(), "alice")
	assert.NoError(t, err)
}

func TestWeeklyRanking(t *testing.T) {
	app := newTestApp(t, testConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	seed := func(user string, n int, age time.Duration) {
		for i := 0; i < n; i++ {
			require.NoError(t, app.repos.Posts.Create(ctx, &models.Post{
				Title:     "p",
				Username:  user,
				CreatedAt: now.Add(-age).Add(-time.Duration(i) * time.Second),
			}))
		}
	}
	seed("carol", 3, time.Hour)
	seed("alice", 2, time.Hour)
	seed("bob", 2, 2*time.Hour)
	seed("old", 9, 8*24*time.Hour)
	for i := 0; i < 12; i++ {
		seed(string(rune('k'+i))+"_one", 1, time.Minute)
	}

	rec := app.do(t, http.MethodGet, "/api/weekly", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ranking []models.RankEntry
	decode(t, rec, &ranking)

	require.Len(t, ranking, 10)
	assert.Equal(t, models.RankEntry{Username: "carol", Count: 3}, ranking[0])
	assert.Equal(t, models.RankEntry{Username: "alice", Count: 2}, ranking[1])
	assert.Equal(t, models.RankEntry{Username: "bob", Count: 2}, ranking[2])
	for _, e := range ranking {
		assert.NotEqual(t, "old", e.Username)
	}
}
