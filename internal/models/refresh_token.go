package models

import "time"

// RefreshToken is one active session in a user's refresh-token set. A refresh
// token is only accepted while its row exists; deleting the row revokes the
// session regardless of the token's cryptographic validity.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_user_token" json:"user_id"`
	Token     string    `gorm:"not null;uniqueIndex:idx_user_token" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
