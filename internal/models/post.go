package models

import "time"

// Post is stored as JSON under post:<id>.
type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Username     string    `json:"username"`
	ImageURL     string    `json:"image_url,omitempty"`
	CodefileURL  string    `json:"codefile_url,omitempty"`
	CodefileName string    `json:"codefile_name,omitempty"`
	LikesCount   int       `json:"likes_count"`
	CreatedAt    time.Time `json:"created_at"`
	// AttachmentKeys lists the file store objects uploaded with this post.
	// Only these are removed when the post is deleted.
	AttachmentKeys []string `json:"attachment_keys,omitempty"`
}

// Comment is stored as JSON under comment:<id>.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Like is stored as JSON under like:<postId>:<username>.
type Like struct {
	PostID    string    `json:"post_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// RankEntry is one row of the weekly leaderboard.
type RankEntry struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// CreatePostRequest is the JSON form of POST /api/posts.
// Multipart requests carry the same text fields plus image/codefile parts.
type CreatePostRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ImageURL     string `json:"image_url"`
	CodefileURL  string `json:"codefile_url"`
	CodefileName string `json:"codefile_name"`
}

// CommentRequest is the JSON body for POST /api/posts/{id}/comments.
type CommentRequest struct {
	Content string `json:"content"`
}

// Page is the envelope for paginated listings.
type Page[T any] struct {
	Total int `json:"total"`
	Data  []T `json:"data"`
}
