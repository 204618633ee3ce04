package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/auth"
	"github.com/sarvbloom/sarv-api/internal/identity"
	"github.com/sarvbloom/sarv-api/internal/rbac"
)

// RequirePermissions authorizes the resolved user against the declared
// required-permission set. Routes declare their set explicitly at
// registration; there is no metadata reflection.
func RequirePermissions(guard *rbac.Guard, required ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user *identity.User
		if u, ok := auth.UserFromCtx(c); ok {
			user = &u
		}
		if err := guard.Authorize(c.UserContext(), user, required...); err != nil {
			return err
		}
		return c.Next()
	}
}
