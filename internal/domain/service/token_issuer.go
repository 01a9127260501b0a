package service

import (
	"time"

	"gatepass/internal/domain/entity"

	"github.com/google/uuid"
)

// AccessClaims is the identity carried by a signed access token.
type AccessClaims struct {
	UserID uuid.UUID
	Email  string
}

// TokenIssuer defines the interface for minting and inspecting the two
// token kinds: signed access tokens and opaque refresh-token values. The
// signing algorithm and the randomness source stay behind this interface.
type TokenIssuer interface {
	// GenerateAccessToken produces a signed access token for the user along
	// with its validity duration.
	GenerateAccessToken(user *entity.User) (token string, expiresIn time.Duration, err error)

	// ParseAccessToken verifies the token signature and returns its claims.
	// With allowExpired set, an expired-but-otherwise-valid token still
	// yields its claims; token renewal presents exactly such tokens.
	ParseAccessToken(token string, allowExpired bool) (*AccessClaims, error)

	// NewRefreshToken draws a fresh opaque refresh-token value from a
	// cryptographically secure random source.
	NewRefreshToken() (string, error)

	// HashToken computes the storage hash for a raw refresh-token value.
	HashToken(token string) string
}
