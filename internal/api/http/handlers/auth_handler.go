package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-lease-service/internal/api/dto"
	"github.com/spec-kit/ticket-lease-service/internal/service"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

// AuthHandler issues tokens.
type AuthHandler struct {
	accounts *service.AccountService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Token POST /api/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	_, pair, err := h.accounts.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{
		Access:           pair.Access,
		AccessExpiresAt:  pair.AccessExpiresAt,
		Refresh:          pair.Refresh,
		RefreshExpiresAt: &pair.RefreshExpiresAt,
	})
}

// Refresh POST /api/token/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.Refresh == "" {
		return apperrors.NewValidationError("refresh token required", nil)
	}
	access, exp, err := h.accounts.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{Access: access, AccessExpiresAt: exp})
}
