package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/auth"
)

// RegisterAuthRoutes wires the authentication endpoints. Everything except
// logout is public; OTP and login requests pass the rate limiter.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, requireAuth, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/exists", h.Exists)
	group.Post("/send-otp", rateLimiter, h.SendOTP)
	group.Post("/check-otp", h.CheckOTP)
	group.Post("/login", rateLimiter, h.Login)
	group.Post("/refresh", h.Refresh)
	group.Get("/logout", requireAuth, h.Logout)
}
