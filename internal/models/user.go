package models

import "time"

// User is stored as JSON under user:<username>.
type User struct {
	// ID is assigned on creation and survives renames.
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"` // bcrypt hash; never rendered, see Public
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	GitHubID  int64     `json:"github_id,omitempty"`
}

// PublicUser is the view of a User that leaves the server.
type PublicUser struct {
	Username  string `json:"username"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{Username: u.Username, Bio: u.Bio, AvatarURL: u.AvatarURL}
}

// EmailCode is a one-time registration code. Times are unix milliseconds.
type EmailCode struct {
	Code      string `json:"code"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// Expired reports whether the code can no longer be used at now.
func (c *EmailCode) Expired(now time.Time) bool {
	return now.UnixMilli() > c.ExpiresAt
}

// OAuthState records an issued OAuth state value until the callback consumes it.
type OAuthState struct {
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginRequest is the JSON body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the JSON body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// SendCodeRequest is the JSON body for POST /api/send_email_code.
type SendCodeRequest struct {
	Email string `json:"email"`
}

// UpdateProfileRequest is the JSON body for PUT /api/user/profile.
// A nil Bio keeps the current one; an empty Username keeps the current name.
type UpdateProfileRequest struct {
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
}
