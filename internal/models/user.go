// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Email is stored lowercased and is
// globally unique. PasswordHash is empty for accounts created through an
// external identity provider; such accounts cannot log in with a password.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"unique;not null" json:"email"`
	PasswordHash string         `json:"-"`
	DisplayName  string         `gorm:"not null" json:"display_name"`
	AvatarURL    string         `json:"avatar_url"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
	Posts         []Post         `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}
