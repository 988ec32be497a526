package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"verdant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(noopPostRepo())
	ctx := context.Background()

	t.Run("empty title", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{UserID: 1, Content: "leafy"})
		assertValidationError(t, err)
	})

	t.Run("title too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{
			UserID:  1,
			Title:   strings.Repeat("x", 201),
			Content: "leafy",
		})
		assertValidationError(t, err)
	})

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{UserID: 1, Title: "Monstera"})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{
			UserID:  1,
			Title:   "Monstera",
			Content: strings.Repeat("x", 5001),
		})
		assertValidationError(t, err)
	})

	t.Run("plant name too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{
			UserID:    1,
			Title:     "Monstera",
			Content:   "leafy",
			PlantName: strings.Repeat("x", 101),
		})
		assertValidationError(t, err)
	})

	t.Run("invalid image url", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{
			UserID:   1,
			Title:    "Monstera",
			Content:  "leafy",
			ImageURL: "not a url",
		})
		assertValidationError(t, err)
	})
}

func TestPostService_CreatePost_Success(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 7
		return nil
	}
	repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return &models.Post{ID: id, Title: "Monstera", PlantName: "Monstera deliciosa"}, nil
	}

	svc := NewPostService(repo)
	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		UserID:    1,
		Title:     "  Monstera  ",
		Content:   "new fenestration",
		PlantName: "Monstera deliciosa",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), post.ID)
}

func TestPostService_UpdatePost_Ownership(t *testing.T) {
	t.Parallel()

	t.Run("non-owner cannot update", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10}, nil
		}
		svc := NewPostService(repo)
		_, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 1, PostID: 1, Title: "t"})
		assertForbiddenError(t, err)
	})

	t.Run("owner updates provided fields only", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1, Title: "old", Content: "old content"}, nil
		}
		var saved *models.Post
		repo.updateFn = func(_ context.Context, p *models.Post) error {
			saved = p
			return nil
		}
		svc := NewPostService(repo)
		post, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 1, PostID: 1, Title: "new"})
		require.NoError(t, err)
		assert.Equal(t, "new", post.Title)
		assert.Equal(t, "old content", post.Content)
		require.NotNil(t, saved)
	})
}

func TestPostService_DeletePost_Ownership(t *testing.T) {
	t.Parallel()

	t.Run("non-owner cannot delete", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10}, nil
		}
		svc := NewPostService(repo)
		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 1})
		assertForbiddenError(t, err)
	})

	t.Run("owner can delete", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		}
		deleted := false
		repo.deleteFn = func(_ context.Context, _ uint) error {
			deleted = true
			return nil
		}
		svc := NewPostService(repo)
		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 1})
		require.NoError(t, err)
		assert.True(t, deleted)
	})
}

func TestPostService_LikeUnlike_PassThrough(t *testing.T) {
	t.Parallel()

	t.Run("like returns repo count", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.likeFn = func(_ context.Context, userID, postID uint) (int, error) {
			assert.Equal(t, uint(2), userID)
			assert.Equal(t, uint(5), postID)
			return 9, nil
		}
		svc := NewPostService(repo)
		count, err := svc.LikePost(context.Background(), 2, 5)
		require.NoError(t, err)
		assert.Equal(t, 9, count)
	})

	t.Run("duplicate like conflict propagates", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.likeFn = func(_ context.Context, _, _ uint) (int, error) {
			return 0, models.NewConflictError("Post already liked")
		}
		svc := NewPostService(repo)
		_, err := svc.LikePost(context.Background(), 2, 5)
		assertAppErrorCode(t, err, "CONFLICT")
	})

	t.Run("unlike of missing like propagates not found", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.unlikeFn = func(_ context.Context, _, _ uint) (int, error) {
			return 0, models.NewNotFoundError("Like", 5)
		}
		svc := NewPostService(repo)
		_, err := svc.UnlikePost(context.Background(), 2, 5)
		assertAppErrorCode(t, err, "NOT_FOUND")
	})
}

func TestPostService_GetLikers_ChecksPostExists(t *testing.T) {
	t.Parallel()

	repoErr := models.NewNotFoundError("Post", 99)
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, _, _ uint) (*models.Post, error) {
		return nil, repoErr
	}
	repo.likersFn = func(_ context.Context, _ uint, _, _ int) ([]*models.User, error) {
		t.Fatal("likers must not be queried for a missing post")
		return nil, nil
	}

	svc := NewPostService(repo)
	_, err := svc.GetLikers(context.Background(), 99, 20, 0)
	assert.ErrorIs(t, err, error(repoErr))
}

func TestPostService_RecountPost(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.recountPostFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, LikesCount: 3, CommentsCount: 2}, nil
	}
	svc := NewPostService(repo)

	post, err := svc.RecountPost(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, post.LikesCount)
	assert.Equal(t, 2, post.CommentsCount)

	repoErr := errors.New("db down")
	repo.recountPostFn = func(_ context.Context, _ uint) (*models.Post, error) {
		return nil, repoErr
	}
	_, err = svc.RecountPost(context.Background(), 1)
	assert.ErrorIs(t, err, repoErr)
}
