package entity

import "time"

// RefreshToken represents a long-lived, authorized user session. It is used
// to obtain a new access token after the old one expires, without requiring
// credentials. The raw token value never touches storage; only its SHA-256
// hash does.
type RefreshToken struct {
	TokenHash string    // SHA-256 hash of the opaque token value handed to the client.
	ExpiresOn time.Time // The exact time when this refresh token becomes invalid.
	CreatedAt time.Time // Timestamp of when this session was created.
}

// ExpiredAt reports whether the token is expired at the given instant.
func (t RefreshToken) ExpiredAt(now time.Time) bool {
	return !t.ExpiresOn.After(now)
}
