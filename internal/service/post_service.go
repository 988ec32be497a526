// Package service holds the application's business logic layer.
package service

import (
	"context"
	"net/url"
	"strings"

	"verdant/internal/models"
	"verdant/internal/repository"
)

type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	UserID    uint
	Title     string
	Content   string
	ImageURL  string
	PlantName string
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
}

type UpdatePostInput struct {
	UserID    uint
	PostID    uint
	Title     string
	Content   string
	ImageURL  string
	PlantName string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

const (
	maxTitleLen     = 200
	maxContentLen   = 5000
	maxPlantNameLen = 100
)

func validatePostFields(title, content, imageURL, plantName string) error {
	if strings.TrimSpace(title) == "" {
		return models.NewValidationError("Title is required")
	}
	if len(title) > maxTitleLen {
		return models.NewValidationError("Title too long (max 200 characters)")
	}
	if strings.TrimSpace(content) == "" {
		return models.NewValidationError("Content is required")
	}
	if len(content) > maxContentLen {
		return models.NewValidationError("Content too long (max 5000 characters)")
	}
	if len(plantName) > maxPlantNameLen {
		return models.NewValidationError("Plant name too long (max 100 characters)")
	}
	if imageURL != "" {
		if _, err := url.ParseRequestURI(imageURL); err != nil {
			return models.NewValidationError("image_url must be a valid URL")
		}
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validatePostFields(in.Title, in.Content, in.ImageURL, in.PlantName); err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:    in.UserID,
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		ImageURL:  in.ImageURL,
		PlantName: strings.TrimSpace(in.PlantName),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID)
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.postRepo.GetByUserID(ctx, userID, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	if in.Title != "" {
		if len(in.Title) > maxTitleLen {
			return nil, models.NewValidationError("Title too long (max 200 characters)")
		}
		post.Title = strings.TrimSpace(in.Title)
	}
	if in.Content != "" {
		if len(in.Content) > maxContentLen {
			return nil, models.NewValidationError("Content too long (max 5000 characters)")
		}
		post.Content = in.Content
	}
	if in.ImageURL != "" {
		if _, err := url.ParseRequestURI(in.ImageURL); err != nil {
			return nil, models.NewValidationError("image_url must be a valid URL")
		}
		post.ImageURL = in.ImageURL
	}
	if in.PlantName != "" {
		if len(in.PlantName) > maxPlantNameLen {
			return nil, models.NewValidationError("Plant name too long (max 100 characters)")
		}
		post.PlantName = strings.TrimSpace(in.PlantName)
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}

	if post.UserID != in.UserID {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	return s.postRepo.Delete(ctx, in.PostID)
}

// LikePost records the like. Liking a post that is already liked is a
// conflict, not a toggle; the repository surfaces ErrAlreadyLiked and the
// current count is returned either way so clients can resync.
func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (int, error) {
	return s.postRepo.Like(ctx, userID, postID)
}

// UnlikePost removes the like. Unliking a post that was never liked reports
// not found.
func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (int, error) {
	return s.postRepo.Unlike(ctx, userID, postID)
}

func (s *PostService) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	return s.postRepo.IsLiked(ctx, userID, postID)
}

func (s *PostService) GetLikers(ctx context.Context, postID uint, limit, offset int) ([]*models.User, error) {
	// Surface 404 for a missing post rather than an empty list.
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.postRepo.Likers(ctx, postID, limit, offset)
}

func (s *PostService) GetLikedPosts(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.ListLikedByUser(ctx, userID, limit, offset)
}

// RecountPost rebuilds both engagement counters from the source tables.
func (s *PostService) RecountPost(ctx context.Context, postID uint) (*models.Post, error) {
	return s.postRepo.RecountPost(ctx, postID)
}
