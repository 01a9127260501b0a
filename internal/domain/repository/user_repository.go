// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers
// and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"gatepass/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for user persistence. The application layer matches
// on these instead of driver errors.
var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when a create collides with an existing email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrVersionConflict is returned when an update loses the optimistic
	// version check, meaning a concurrent writer got there first. Callers
	// are expected to reload and retry.
	ErrVersionConflict = errors.New("user version conflict")
)

// UserRepository defines the standard operations for user persistence,
// including the user's refresh-token collection, which is stored as part of
// the user record.
type UserRepository interface {
	// FindByID retrieves a single user, refresh tokens included, by unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user, refresh tokens included, by email.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Create persists a new user entity to storage.
	Create(ctx context.Context, user *entity.User) error

	// Update persists the user's fields and refresh-token collection. The
	// write is guarded by the entity's Version stamp: if the stored version
	// differs, nothing is written and ErrVersionConflict is returned. On
	// success the entity's Version is advanced to the stored value.
	Update(ctx context.Context, user *entity.User) error
}
