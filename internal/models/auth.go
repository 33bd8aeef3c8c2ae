package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess = "access"
)

// TokenClaims is the access token payload. It carries the admin id only.
type TokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshToken is a persisted rotation token. Only the hash is stored.
type RefreshToken struct {
	ID        string
	AdminID   string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired checks the token against now
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TokenPair is what login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken           string    `json:"token"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"tokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}
