package repository

import (
	"context"
	"errors"

	"verdant/internal/cache"
	"verdant/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations.
//
// Likes and comments maintain denormalized counters on the posts row. Every
// write that changes engagement runs the row change and the counter update in
// a single transaction so the stored counts never drift from the source
// tables under concurrency.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error)
	List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error

	Like(ctx context.Context, userID, postID uint) (int, error)
	Unlike(ctx context.Context, userID, postID uint) (int, error)
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	Likers(ctx context.Context, postID uint, limit, offset int) ([]*models.User, error)
	ListLikedByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error)
	RecountPost(ctx context.Context, postID uint) (*models.Post, error)
}

// ErrAlreadyLiked is returned by Like when the user already likes the post.
var ErrAlreadyLiked = models.NewConflictError("Post already liked")

// ErrNotLiked is returned by Unlike when no like exists to remove.
var ErrNotLiked = &models.AppError{Code: "NOT_FOUND", Message: "Like not found"}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// applyLiked adds the viewer's liked flag as a subquery so post reads stay a
// single round trip. Counters are plain columns and need no subquery.
func (r *postRepository) applyLiked(db *gorm.DB, currentUserID uint) *gorm.DB {
	if currentUserID != 0 {
		return db.Select("posts.*, EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) as liked", currentUserID)
	}
	return db.Select("posts.*, false as liked")
}

func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	var post models.Post

	fetch := func() error {
		err := r.applyLiked(r.db.WithContext(ctx), currentUserID).
			Preload("User").
			First(&post, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	}

	var err error
	if currentUserID == 0 {
		// Anonymous reads share a cache entry; the liked flag is always false.
		err = cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyLiked(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyLiked(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

// Delete removes the post together with its likes and comments. Likes are
// hard-deleted (the unique constraint must free up), comments follow their
// normal soft delete.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

// Like inserts the like row and bumps the counter in one transaction. The
// INSERT ... ON CONFLICT DO NOTHING gate makes the pair race-safe: only the
// request that actually created the row increments the counter, every
// concurrent duplicate gets ErrAlreadyLiked. Returns the post's like count
// after the operation.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) (int, error) {
	var likesCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`INSERT INTO likes (user_id, post_id, created_at)
			 VALUES (?, ?, NOW())
			 ON CONFLICT (user_id, post_id) DO NOTHING`,
			userID, postID,
		)
		if result.Error != nil {
			// The likes FK rejects inserts for posts that do not exist.
			if isForeignKeyViolation(result.Error) {
				return models.NewNotFoundError("Post", postID)
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyLiked
		}

		row := tx.Raw(
			`UPDATE posts SET likes_count = likes_count + 1
			 WHERE id = ? AND deleted_at IS NULL
			 RETURNING likes_count`,
			postID,
		).Row()
		if err := row.Scan(&likesCount); err != nil {
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
	return likesCount, nil
}

// Unlike removes the like row and decrements the counter in one transaction.
// A zero-row delete means the like never existed and yields ErrNotLiked
// without touching the counter. GREATEST floors the counter at zero so a
// reconciliation gap can never drive it negative.
func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (int, error) {
	var likesCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().
			Where("user_id = ? AND post_id = ?", userID, postID).
			Delete(&models.Like{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotLiked
		}

		row := tx.Raw(
			`UPDATE posts SET likes_count = GREATEST(likes_count - 1, 0)
			 WHERE id = ? AND deleted_at IS NULL
			 RETURNING likes_count`,
			postID,
		).Row()
		if err := row.Scan(&likesCount); err != nil {
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
	return likesCount, nil
}

func (r *postRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) Likers(ctx context.Context, postID uint, limit, offset int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN likes ON likes.user_id = users.id").
		Where("likes.post_id = ?", postID).
		Order("likes.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *postRepository) ListLikedByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Select("posts.*, true as liked").
		Joins("JOIN likes ON likes.post_id = posts.id").
		Where("likes.user_id = ?", userID).
		Preload("User").
		Order("likes.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// RecountPost recomputes both counters from the likes and comments tables and
// writes them back. Used to reconcile after out-of-band changes.
func (r *postRepository) RecountPost(ctx context.Context, postID uint) (*models.Post, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE posts SET
			likes_count = (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id),
			comments_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL)
		 WHERE id = ? AND deleted_at IS NULL`,
		postID,
	)
	if result.Error != nil {
		return nil, models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Post", postID)
	}

	cache.InvalidatePost(ctx, postID)
	return r.GetByID(ctx, postID, 0)
}
