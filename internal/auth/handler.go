package auth

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/identity"
	"github.com/sarvbloom/sarv-api/internal/sms"
)

// CtxUserKey is the fiber locals key the auth middleware stores the resolved
// user under.
const CtxUserKey = "auth_user"

// Handler exposes the auth endpoints.
type Handler struct {
	svc     *Service
	sender  sms.Sender
	logger  *slog.Logger
	echoOTP bool
}

// NewHandler builds the auth handler. When echoOTP is true (non-production
// deployments) send-otp responses include the generated code.
func NewHandler(svc *Service, sender sms.Sender, logger *slog.Logger, echoOTP bool) *Handler {
	return &Handler{svc: svc, sender: sender, logger: logger, echoOTP: echoOTP}
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type checkOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Exists reports whether an account is registered for the phone.
func (h *Handler) Exists(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	exists, err := h.svc.CheckExistence(c.UserContext(), NormalizeDigits(req.Phone))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"exists": exists})
}

// SendOTP issues an auth challenge and hands the code to the SMS collaborator.
func (h *Handler) SendOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	phone := NormalizeDigits(req.Phone)

	code, err := h.svc.RequestOTP(c.UserContext(), phone)
	if err != nil {
		return err
	}

	if err := h.sender.SendOTP(c.UserContext(), phone, code); err != nil {
		// Delivery failure does not void the challenge; the client can retry
		// after the TTL.
		h.logger.Error("otp delivery failed", slog.Any("error", err))
	}

	resp := fiber.Map{"message": "otp code sent"}
	if h.echoOTP {
		resp["code"] = code
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// CheckOTP verifies the code and returns a token pair.
func (h *Handler) CheckOTP(c *fiber.Ctx) error {
	var req checkOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, err := h.svc.VerifyOTP(c.UserContext(), NormalizeDigits(req.Phone), NormalizeDigits(req.Code))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":      "login successful",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Login authenticates with phone and password.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, err := h.svc.Login(c.UserContext(), NormalizeDigits(req.Phone), req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":      "login successful",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Refresh exchanges a valid refresh token for a new pair.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":      "login successful",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Logout invalidates the caller's tokens. Requires the auth middleware.
func (h *Handler) Logout(c *fiber.Ctx) error {
	user, ok := UserFromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, authFailedMessage)
	}
	if err := h.svc.Logout(c.UserContext(), user); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "logout successful"})
}

// UserFromCtx returns the user resolved by the auth middleware, if any.
func UserFromCtx(c *fiber.Ctx) (identity.User, bool) {
	user, ok := c.Locals(CtxUserKey).(identity.User)
	return user, ok
}
