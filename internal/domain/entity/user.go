// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the core entity in the system. Besides its identity fields it owns
// the collection of refresh tokens issued against it; the collection is only
// ever mutated through the Append/Remove helpers below and persisted as part
// of the user record.
type User struct {
	ID            uuid.UUID      // The unique identifier for the user account.
	Email         string         // The user's login identifier.
	FirstName     string         // The user's given name.
	LastName      string         // The user's family name.
	PasswordHash  string         // The bcrypt-hashed login secret.
	Version       int64          // Optimistic-concurrency stamp, bumped on every persisted update.
	RefreshTokens []RefreshToken // Sessions issued for this user, keyed by token hash for lookup.
	CreatedAt     time.Time      // Timestamp of when this account was created.
	UpdatedAt     time.Time      // Timestamp of the last modification to this record.
}

// AppendRefreshToken adds a newly issued refresh token to the user's
// collection. Entries are appended, never mutated after creation.
func (u *User) AppendRefreshToken(token RefreshToken) {
	u.RefreshTokens = append(u.RefreshTokens, token)
}

// FindRefreshToken looks up a refresh token by its stored hash.
func (u *User) FindRefreshToken(tokenHash string) (RefreshToken, bool) {
	for _, token := range u.RefreshTokens {
		if token.TokenHash == tokenHash {
			return token, true
		}
	}

	return RefreshToken{}, false
}

// RemoveRefreshToken deletes the refresh token with the given hash from the
// collection, reporting whether it was present.
func (u *User) RemoveRefreshToken(tokenHash string) bool {
	for i, token := range u.RefreshTokens {
		if token.TokenHash == tokenHash {
			u.RefreshTokens = append(u.RefreshTokens[:i], u.RefreshTokens[i+1:]...)

			return true
		}
	}

	return false
}
