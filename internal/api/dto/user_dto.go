package dto

import (
	"time"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

// CreateUserRequest payload.
type CreateUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// UpdateUserRequest payload. Omitted fields are left unchanged on PATCH.
type UpdateUserRequest struct {
	Username *string      `json:"username"`
	Password *string      `json:"password"`
	Role     *domain.Role `json:"role"`
	Active   *bool        `json:"active"`
}

// UserView is the API representation of an account.
type UserView struct {
	ID        int64       `json:"id,string"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserView renders an account without its password hash.
func NewUserView(u *domain.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, Role: u.Role, Active: u.Active, CreatedAt: u.CreatedAt}
}

// TokenRequest is the login payload.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// TokenResponse carries issued tokens.
type TokenResponse struct {
	Access           string     `json:"access"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	Refresh          string     `json:"refresh,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
}
