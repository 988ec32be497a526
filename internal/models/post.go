package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a post in the Verdant application. LikesCount and
// CommentsCount are persisted denormalized counters maintained in the same
// transaction as the underlying like/comment rows; they must converge to the
// row counts of those tables.
type Post struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	UserID        uint   `gorm:"not null;index" json:"user_id"`
	User          User   `gorm:"foreignKey:UserID" json:"user"`
	Title         string `gorm:"not null" json:"title"`
	Content       string `gorm:"type:text;not null" json:"content"`
	ImageURL      string `json:"image_url"`
	PlantName     string `json:"plant_name,omitempty"`
	LikesCount    int    `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int    `gorm:"not null;default:0" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked     bool           `gorm:"->" json:"liked"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
