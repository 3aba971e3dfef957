package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-lease-service/internal/api/dto"
	"github.com/spec-kit/ticket-lease-service/internal/service"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

// UsersHandler exposes account management.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(accounts *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

// List GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	limit, offset, err := page(c)
	if err != nil {
		return err
	}
	users, err := h.accounts.List(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	views := make([]dto.UserView, 0, len(users))
	for i := range users {
		views = append(views, dto.NewUserView(&users[i]))
	}
	return c.JSON(fiber.Map{"data": views})
}

// Create POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.accounts.Create(c.UserContext(), service.UserCreateInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserView(user)})
}

// Get GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserView(user)})
}

// Update PUT|PATCH /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if c.Method() == fiber.MethodPut && (req.Username == nil || req.Role == nil) {
		return apperrors.NewValidationError("username and role required", nil)
	}
	user, err := h.accounts.Update(c.UserContext(), id, service.UserUpdateInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		Active:   req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserView(user)})
}

// Delete DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
