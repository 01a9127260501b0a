// Package errors holds the process-wide registry of domain errors. The
// registry is populated once at package init and treated as constant
// thereafter; services hand these values to callers inside outcomes, never
// as Go errors.
package errors

import (
	"net/http"

	"gatepass/internal/domain/outcome"
)

// Registered domain errors. The code namespaces follow the owning entity.
var (
	// ErrInvalidCredentials covers both "unknown email" and "wrong password".
	// Login deliberately returns the same value for both so a caller cannot
	// probe which emails exist.
	ErrInvalidCredentials = register("User.InvalidCredentials", "Invalid Email or Password", http.StatusUnauthorized)

	// ErrInvalidAccessToken is returned when a presented access token cannot
	// be parsed or fails signature verification.
	ErrInvalidAccessToken = register("User.InvalidAccessToken", "Invalid access token", http.StatusUnauthorized)

	// ErrInvalidRefreshToken is returned when a presented refresh token does
	// not belong to the user, has been rotated out, or has expired.
	ErrInvalidRefreshToken = register("User.InvalidRefreshToken", "Invalid or expired refresh token", http.StatusUnauthorized)

	// ErrDuplicateEmail is returned when registration is attempted with an
	// email that already has an account.
	ErrDuplicateEmail = register("User.DuplicateEmail", "Email is already registered", http.StatusConflict)
)

type registration struct {
	err        outcome.Error
	httpStatus int
}

// registry maps error code to its registration. Writes happen only through
// register during package init; all later access is read-only.
var registry = map[string]registration{}

func register(code, description string, httpStatus int) outcome.Error {
	if _, exists := registry[code]; exists {
		panic("domain errors: duplicate registration of " + code)
	}

	err := outcome.NewError(code, description)
	registry[code] = registration{err: err, httpStatus: httpStatus}

	return err
}

// Lookup returns the registered error for a code.
func Lookup(code string) (outcome.Error, bool) {
	reg, ok := registry[code]

	return reg.err, ok
}

// HTTPStatus returns the transport status a registered error maps to.
// Unregistered codes fall back to 400, the generic client-error status.
func HTTPStatus(err outcome.Error) int {
	if reg, ok := registry[err.Code()]; ok {
		return reg.httpStatus
	}

	return http.StatusBadRequest
}
