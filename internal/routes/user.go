package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/middleware"
	"github.com/sarvbloom/sarv-api/internal/rbac"
	"github.com/sarvbloom/sarv-api/internal/user"
)

// RegisterUserRoutes wires the user-management endpoints behind authentication.
func RegisterUserRoutes(r fiber.Router, h *user.Handler, requireAuth fiber.Handler, guard *rbac.Guard) {
	group := r.Group("/user", requireAuth)
	group.Get("/me", h.Me)
	group.Patch("/update-password", h.UpdatePassword)
	group.Patch("/update-phone", h.UpdatePhone)
	group.Patch("/verify-phone", h.VerifyPhone)
	group.Put("/:id/role",
		middleware.RequirePermissions(guard, requiredPermissions("PUT", "/user/:id/role")...),
		h.AssignRole)
}
