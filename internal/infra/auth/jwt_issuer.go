// Package auth provides concrete implementations for authentication-related
// domain services.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatepass/config"
	"gatepass/internal/domain/entity"
	"gatepass/internal/domain/service"
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	refreshTokenBytes     = 32
)

// ErrInvalidAccessToken is returned when an access token fails parsing or
// signature verification.
var ErrInvalidAccessToken = errors.New("invalid access token")

// jwtIssuer is a concrete implementation of the TokenIssuer interface.
// Access tokens are HS256-signed JWTs; refresh tokens are opaque values
// drawn from crypto/rand, stored only as SHA-256 hashes.
type jwtIssuer struct {
	accessSecret string
	accessTTL    time.Duration
}

// NewJWTIssuer is the constructor for jwtIssuer.
func NewJWTIssuer(cfg *config.Config) (service.TokenIssuer, error) {
	if cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt access secret must be provided")
	}

	accessTTL := defaultAccessTokenTTL
	if cfg.Auth != nil && cfg.Auth.AccessTokenTTL > 0 {
		accessTTL = cfg.Auth.AccessTokenTTL
	}

	return &jwtIssuer{
		accessSecret: cfg.SecretKey.Access,
		accessTTL:    accessTTL,
	}, nil
}

// GenerateAccessToken produces a signed access token and its validity duration.
func (s *jwtIssuer) GenerateAccessToken(user *entity.User) (string, time.Duration, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.accessSecret))
	if err != nil {
		return "", 0, err
	}

	return token, s.accessTTL, nil
}

// ParseAccessToken verifies the token signature and extracts its claims.
// With allowExpired set, expiry is not enforced; the signature always is.
func (s *jwtIssuer) ParseAccessToken(tokenString string, allowExpired bool) (*service.AccessClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.accessSecret), nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidAccessToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidAccessToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	email, _ := claims["email"].(string)

	return &service.AccessClaims{UserID: userID, Email: email}, nil
}

// NewRefreshToken draws an opaque refresh-token value from crypto/rand.
func (s *jwtIssuer) NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken computes the SHA-256 storage hash for a raw token value.
func (s *jwtIssuer) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}
