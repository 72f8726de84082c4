package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/bugdex-forum/backend/internal/models"
)

var alice = &models.User{ID: "id-alice", Username: "alice"}

func TestTokenRoundTrip(t *testing.T) {
	enc := NewTokenEncoder("secret")
	tok, err := enc.Encode(&models.User{ID: "id-alice", Username: "alice", AvatarURL: "https://avatars.example/alice.png"})
	require.NoError(t, err)

	claims, err := enc.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "id-alice", claims.Subject)
	assert.Equal(t, "https://avatars.example/alice.png", claims.AvatarURL)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.Equal(t, TokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestTokenRejectsForgery(t *testing.T) {
	tok, err := NewTokenEncoder("secret").Encode(alice)
	require.NoError(t, err)

	_, err = NewTokenEncoder("other-secret").Decode(tok)
	assert.ErrorIs(t, err, ErrDecode)

	unsigned := base64.StdEncoding.EncodeToString([]byte(`{"username":"admin","iss":"bugdex-forum"}`))
	_, err = NewTokenEncoder("secret").Decode(unsigned)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = NewTokenEncoder("secret").Decode("")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestTokenExpires(t *testing.T) {
	enc := NewTokenEncoder("secret")
	issued := time.Now()
	enc.now = func() time.Time { return issued }
	tok, err := enc.Encode(alice)
	require.NoError(t, err)

	enc.now = func() time.Time { return issued.Add(TokenTTL + time.Minute) }
	_, err = enc.Decode(tok)
	assert.ErrorIs(t, err, ErrDecode)
}
