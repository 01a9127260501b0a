// Package usecase defines the application-facing interfaces and data
// transfer objects for the authentication service.
package usecase

import (
	"context"
	"time"

	"gatepass/internal/domain/outcome"

	"github.com/google/uuid"
)

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

// IssueTokenInput carries the login credentials.
type IssueTokenInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RenewTokenInput carries the token pair presented for rotation. The access
// token may be expired; the refresh token must not be.
type RenewTokenInput struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RevokeTokenInput names the refresh token to invalidate. The access token
// must still be valid.
type RevokeTokenInput struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AuthResponse is the immutable snapshot produced once per successful token
// issuance. Its refresh-token component is mirrored into the user's
// refresh-token collection; the response itself is never persisted.
type AuthResponse struct {
	UserID                uuid.UUID `json:"userId"`
	Email                 string    `json:"email"`
	FirstName             string    `json:"firstName"`
	LastName              string    `json:"lastName"`
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresIn  int64     `json:"accessTokenExpiresIn"` // seconds
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresOn time.Time `json:"refreshTokenExpiresOn"`
}

// AuthUsecase orchestrates credential verification, token issuance and
// refresh-token lifecycle.
//
// Every operation separates its two failure channels: expected,
// client-actionable failures travel inside the returned outcome with a nil
// error, while infrastructure failures (store, issuer) come back as a
// non-nil error with an outcome that must not be consumed. Monitoring can
// therefore tell a bad password from a store outage.
type AuthUsecase interface {
	// Register creates an account and immediately issues a token pair.
	Register(ctx context.Context, input *RegisterInput) (outcome.Of[*AuthResponse], error)

	// IssueToken verifies the credentials and issues an access token plus a
	// fresh refresh token appended to the user's collection. Unknown email
	// and wrong password produce the identical domain failure.
	IssueToken(ctx context.Context, input *IssueTokenInput) (outcome.Of[*AuthResponse], error)

	// RenewToken exchanges an unexpired refresh token for a new token pair,
	// invalidating the consumed token (rotation, not reuse).
	RenewToken(ctx context.Context, input *RenewTokenInput) (outcome.Of[*AuthResponse], error)

	// RevokeToken removes the named refresh token from the user's collection
	// if present and unexpired.
	RevokeToken(ctx context.Context, input *RevokeTokenInput) (outcome.Outcome, error)
}
