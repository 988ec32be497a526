// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"verdant/internal/cache"
	"verdant/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users and their
// server-side refresh token set.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error

	AddRefreshToken(ctx context.Context, userID uint, token string, expiresAt time.Time) error
	HasRefreshToken(ctx context.Context, userID uint, token string) (bool, error)
	RemoveRefreshToken(ctx context.Context, userID uint, token string) (bool, error)
	RemoveAllRefreshTokens(ctx context.Context, userID uint) error
	RotateRefreshToken(ctx context.Context, userID uint, oldToken, newToken string, expiresAt time.Time) (bool, error)
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Email already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) AddRefreshToken(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	rt := models.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&rt).Error; err != nil {
		if isUniqueConstraintError(err) {
			// The same signed token is already stored; treat as success.
			return nil
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) HasRefreshToken(ctx context.Context, userID uint, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND token = ?", userID, token).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// RemoveRefreshToken deletes a single stored refresh token. The boolean
// reports whether a row was actually removed.
func (r *userRepository) RemoveRefreshToken(ctx context.Context, userID uint, token string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepository) RemoveAllRefreshTokens(ctx context.Context, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// RotateRefreshToken atomically swaps oldToken for newToken. The delete and
// insert run in one transaction; when the delete matches no row the old token
// was already rotated or revoked (possible replay) and the whole operation
// reports false without storing the new token.
func (r *userRepository) RotateRefreshToken(ctx context.Context, userID uint, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	rotated := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("user_id = ? AND token = ?", userID, oldToken).
			Delete(&models.RefreshToken{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		rt := models.RefreshToken{
			UserID:    userID,
			Token:     newToken,
			ExpiresAt: expiresAt,
		}
		if err := tx.Create(&rt).Error; err != nil {
			return err
		}
		rotated = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return rotated, nil
}

// DeleteExpiredRefreshTokens sweeps rows whose expiry has passed.
func (r *userRepository) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

// isForeignKeyViolation checks if a DB error is a foreign key violation.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL foreign key violation SQLSTATE 23503
	return strings.Contains(msg, "foreign key") ||
		strings.Contains(msg, "23503")
}
