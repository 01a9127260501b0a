package postgres

import (
	"context"
	"strings"

	"gatepass/internal/domain/entity"
	"gatepass/internal/domain/repository"
	"gatepass/internal/errors"
	"gatepass/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userRepository implements repository.UserRepository on GORM. The user's
// refresh-token collection is loaded and persisted together with the user
// record; updates are guarded by the version column.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a user and their refresh tokens by unique ID.
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var row model.UserModel
	err := r.db.WithContext(ctx).
		Preload("RefreshTokens").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "find user by id")
	}

	return toUserEntity(&row), nil
}

// FindByEmail retrieves a user and their refresh tokens by email.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var row model.UserModel
	err := r.db.WithContext(ctx).
		Preload("RefreshTokens").
		Where("email = ?", email).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "find user by email")
	}

	return toUserEntity(&row), nil
}

// Create persists a new user. A unique-constraint collision on email is
// translated to repository.ErrDuplicateEmail.
func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	row := toUserModel(user)
	row.Version = 1

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateEmail
		}

		return errors.Wrap(err, "create user")
	}

	user.ID = row.ID
	user.Version = row.Version
	user.CreatedAt = row.CreatedAt
	user.UpdatedAt = row.UpdatedAt

	return nil
}

// Update writes the user's fields and reconciles the refresh-token rows with
// the entity's collection. The UPDATE is conditioned on the version the
// entity was loaded with; zero rows affected means a concurrent writer won
// and the caller gets repository.ErrVersionConflict.
func (r *userRepository) Update(ctx context.Context, user *entity.User) error {
	newVersion := user.Version + 1
	res := r.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]any{
			"email":         user.Email,
			"first_name":    user.FirstName,
			"last_name":     user.LastName,
			"password_hash": user.PasswordHash,
			"version":       newVersion,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update user")
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&model.UserModel{}).
			Where("id = ?", user.ID).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "check user existence")
		}
		if count == 0 {
			return repository.ErrUserNotFound
		}

		return repository.ErrVersionConflict
	}

	if err := r.syncRefreshTokens(ctx, user); err != nil {
		return err
	}

	user.Version = newVersion

	return nil
}

// syncRefreshTokens makes the stored refresh-token rows match the entity's
// collection: rows missing from the entity are deleted, new entries are
// inserted. Existing rows are never rewritten.
func (r *userRepository) syncRefreshTokens(ctx context.Context, user *entity.User) error {
	var existing []model.RefreshTokenModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Find(&existing).Error; err != nil {
		return errors.Wrap(err, "load refresh tokens")
	}

	keep := make(map[string]struct{}, len(user.RefreshTokens))
	for _, token := range user.RefreshTokens {
		keep[token.TokenHash] = struct{}{}
	}

	stored := make(map[string]struct{}, len(existing))
	var stale []string
	for _, row := range existing {
		stored[row.TokenHash] = struct{}{}
		if _, ok := keep[row.TokenHash]; !ok {
			stale = append(stale, row.TokenHash)
		}
	}

	if len(stale) > 0 {
		if err := r.db.WithContext(ctx).
			Where("user_id = ? AND token_hash IN ?", user.ID, stale).
			Delete(&model.RefreshTokenModel{}).Error; err != nil {
			return errors.Wrap(err, "delete stale refresh tokens")
		}
	}

	for _, token := range user.RefreshTokens {
		if _, ok := stored[token.TokenHash]; ok {
			continue
		}
		row := model.RefreshTokenModel{
			UserID:    user.ID,
			TokenHash: token.TokenHash,
			ExpiresOn: token.ExpiresOn,
			CreatedAt: token.CreatedAt,
		}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return errors.Wrap(err, "insert refresh token")
		}
	}

	return nil
}

func toUserModel(user *entity.User) *model.UserModel {
	return &model.UserModel{
		ID:           user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		PasswordHash: user.PasswordHash,
		Version:      user.Version,
	}
}

func toUserEntity(row *model.UserModel) *entity.User {
	tokens := make([]entity.RefreshToken, 0, len(row.RefreshTokens))
	for _, tokenRow := range row.RefreshTokens {
		tokens = append(tokens, entity.RefreshToken{
			TokenHash: tokenRow.TokenHash,
			ExpiresOn: tokenRow.ExpiresOn,
			CreatedAt: tokenRow.CreatedAt,
		})
	}

	return &entity.User{
		ID:            row.ID,
		Email:         row.Email,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		PasswordHash:  row.PasswordHash,
		Version:       row.Version,
		RefreshTokens: tokens,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// isUniqueConstraintViolation checks for PostgreSQL unique-constraint errors.
func isUniqueConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "duplicate key") ||
		strings.Contains(errMsg, "unique constraint")
}
