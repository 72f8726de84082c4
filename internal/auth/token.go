package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ayush/bugdex-forum/backend/internal/models"
)

const (
	TokenTTL    = 24 * time.Hour
	TokenIssuer = "bugdex-forum"
)

// ErrDecode is returned for any credential that is malformed, unsigned,
// signed with another key, expired or issued by someone else.
var ErrDecode = errors.New("invalid credential")

// Claims is the payload carried by a bearer credential. Subject holds the
// user's ID so a credential stops working once its username changes hands.
type Claims struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	jwt.RegisteredClaims
}

// TokenEncoder issues and verifies HS256 credentials.
type TokenEncoder struct {
	secret []byte
	now    func() time.Time
}

func NewTokenEncoder(secret string) *TokenEncoder {
	return &TokenEncoder{secret: []byte(secret), now: time.Now}
}

// Encode returns a credential for u valid for TokenTTL.
func (e *TokenEncoder) Encode(u *models.User) (string, error) {
	now := e.now()
	claims := &Claims{
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			Issuer:    TokenIssuer,
			Subject:   u.ID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Decode verifies credential and returns its claims.
func (e *TokenEncoder) Decode(credential string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims,
		func(*jwt.Token) (any, error) { return e.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrDecode)
	}
	return claims, nil
}
