package server

import (
	"context"
	"strings"
	"time"

	"verdant/internal/models"
	"verdant/internal/token"
	"verdant/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// issueSession creates a token pair for the user and stores the refresh token
// server-side so it can be revoked later.
func (s *Server) issueSession(c *fiber.Ctx, user *models.User) (*token.Pair, error) {
	pair, err := s.tokens.IssuePair(token.Payload{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	expiresAt := time.Now().Add(s.tokens.RefreshTTL())
	if err := s.userRepo.AddRefreshToken(c.UserContext(), user.ID, pair.RefreshToken, expiresAt); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Email == "" || req.DisplayName == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email, display name, and password are required"))
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	// Check if user already exists
	existing, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return respondAppError(c, err)
	}
	if existing != nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewConflictError("Email already registered"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: string(hashedPassword),
		IsActive:     true,
	}
	if createErr := s.userRepo.Create(c.UserContext(), user); createErr != nil {
		return respondAppError(c, createErr)
	}

	pair, err := s.issueSession(c, user)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	user, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return respondAppError(c, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); cmpErr != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if !user.IsActive {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Account is deactivated"))
	}

	pair, err := s.issueSession(c, user)
	if err != nil {
		return respondAppError(c, err)
	}

	// Opportunistic sweep of expired refresh tokens. Runs detached from the
	// request; the Fiber context is recycled after the response.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = s.userRepo.DeleteExpiredRefreshTokens(ctx)
	}()

	return c.JSON(fiber.Map{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Refresh handles POST /api/auth/refresh. It rotates the presented refresh
// token: the old token is consumed and a fresh pair is issued in one atomic
// step. A token that verifies cryptographically but is no longer stored was
// already rotated or revoked and is rejected.
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("refresh_token is required"))
	}

	payload, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid refresh token"))
	}

	user, err := s.userRepo.GetByID(c.UserContext(), payload.UserID)
	if err != nil || user == nil || !user.IsActive {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid refresh token"))
	}

	pair, err := s.tokens.IssuePair(token.Payload{UserID: user.ID, Email: user.Email})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	expiresAt := time.Now().Add(s.tokens.RefreshTTL())
	rotated, err := s.userRepo.RotateRefreshToken(c.UserContext(), user.ID, req.RefreshToken, pair.RefreshToken, expiresAt)
	if err != nil {
		return respondAppError(c, err)
	}
	if !rotated {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid refresh token"))
	}

	return c.JSON(fiber.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout handles POST /api/auth/logout. The body is optional: when a
// refresh_token is present its server-side row is revoked, otherwise the
// client just discards its tokens. Unknown tokens are a no-op; logout is
// idempotent.
func (s *Server) Logout(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.BodyParser(&req)

	if req.RefreshToken != "" {
		if _, err := s.userRepo.RemoveRefreshToken(c.UserContext(), userID, req.RefreshToken); err != nil {
			return respondAppError(c, err)
		}
	}

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// LogoutAll handles POST /api/auth/logout-all. Revokes every refresh token of
// the authenticated user, ending all sessions.
func (s *Server) LogoutAll(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if err := s.userRepo.RemoveAllRefreshTokens(c.UserContext(), userID); err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Logged out from all sessions"})
}
