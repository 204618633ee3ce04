package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/auth"
)

// RequireAuth extracts and validates the bearer access token and stores the
// resolved user in request locals. Malformed header, wrong scheme and non-JWT
// tokens all collapse to the same generic failure.
func RequireAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return apperr.Unauthorized("authentication failed")
		}

		user, err := svc.ValidateAccessToken(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(auth.CtxUserKey, user)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	// A compact JWT has exactly three dot-separated segments.
	if token == "" || strings.Count(token, ".") != 2 {
		return "", false
	}
	return token, true
}
