package repository

import (
	"context"
	"errors"

	"verdant/internal/cache"
	"verdant/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations.
// Creates and deletes keep the posts.comments_count column in step with the
// comments table inside a single transaction.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) (int, error)
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	GetByPostID(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) (int, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and bumps the post's counter in one transaction.
// Returns the post's comment count after the insert.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) (int, error) {
	var commentsCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		row := tx.Raw(
			`UPDATE posts SET comments_count = comments_count + 1
			 WHERE id = ? AND deleted_at IS NULL
			 RETURNING comments_count`,
			comment.PostID,
		).Row()
		if err := row.Scan(&commentsCount); err != nil {
			return models.NewNotFoundError("Post", comment.PostID)
		}
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*models.AppError); ok {
			return 0, appErr
		}
		return 0, models.NewInternalError(err)
	}

	cache.InvalidatePost(ctx, comment.PostID)
	return commentsCount, nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		First(&comment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

func (r *commentRepository) GetByPostID(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Save(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete soft-deletes the comment and decrements the post counter in one
// transaction. The rows-affected gate keeps a double delete from decrementing
// twice; GREATEST floors the counter at zero.
func (r *commentRepository) Delete(ctx context.Context, id uint) (int, error) {
	var commentsCount int
	var postID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Comment", id)
			}
			return err
		}
		postID = comment.PostID

		result := tx.Delete(&models.Comment{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("Comment", id)
		}

		row := tx.Raw(
			`UPDATE posts SET comments_count = GREATEST(comments_count - 1, 0)
			 WHERE id = ? AND deleted_at IS NULL
			 RETURNING comments_count`,
			postID,
		).Row()
		if err := row.Scan(&commentsCount); err != nil {
			return models.NewNotFoundError("Post", postID)
		}
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*models.AppError); ok {
			return 0, appErr
		}
		return 0, models.NewInternalError(err)
	}

	cache.InvalidatePost(ctx, postID)
	return commentsCount, nil
}
