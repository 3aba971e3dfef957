package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequirePermission lets the request through when the caller's role is granted at
// least one of ops.
func RequirePermission(policy *Policy, ops ...Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "authentication required")
		}
		if !policy.AllowsAny(principal.User.Role, ops...) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
