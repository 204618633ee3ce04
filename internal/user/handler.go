package user

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/auth"
	"github.com/sarvbloom/sarv-api/internal/sms"
)

// Handler exposes the user-management endpoints. All routes sit behind the
// auth middleware.
type Handler struct {
	svc     *Service
	sender  sms.Sender
	logger  *slog.Logger
	echoOTP bool
}

// NewHandler builds the user handler.
func NewHandler(svc *Service, sender sms.Sender, logger *slog.Logger, echoOTP bool) *Handler {
	return &Handler{svc: svc, sender: sender, logger: logger, echoOTP: echoOTP}
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type updatePhoneRequest struct {
	Phone string `json:"phone"`
}

type verifyPhoneRequest struct {
	Code string `json:"code"`
}

type assignRoleRequest struct {
	RoleID string `json:"roleId"`
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication failed")
	}
	return c.Status(http.StatusOK).JSON(ProfileOf(user))
}

// UpdatePassword changes the caller's password.
func (h *Handler) UpdatePassword(c *fiber.Ctx) error {
	user, ok := auth.UserFromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication failed")
	}
	var req updatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdatePassword(c.UserContext(), user, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "password updated"})
}

// UpdatePhone stages a phone change and sends the verification code.
func (h *Handler) UpdatePhone(c *fiber.Ctx) error {
	user, ok := auth.UserFromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication failed")
	}
	var req updatePhoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	phone := auth.NormalizeDigits(req.Phone)

	code, err := h.svc.RequestPhoneUpdate(c.UserContext(), user, phone)
	if err != nil {
		return err
	}

	if err := h.sender.SendOTP(c.UserContext(), phone, code); err != nil {
		h.logger.Error("otp delivery failed", slog.Any("error", err))
	}

	resp := fiber.Map{"message": "otp code sent"}
	if h.echoOTP {
		resp["code"] = code
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// VerifyPhone completes a staged phone change.
func (h *Handler) VerifyPhone(c *fiber.Ctx) error {
	user, ok := auth.UserFromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication failed")
	}
	var req verifyPhoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	profile, err := h.svc.VerifyPhoneUpdate(c.UserContext(), user, auth.NormalizeDigits(req.Code))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "phone number updated", "user": profile})
}

// AssignRole sets the target user's role.
func (h *Handler) AssignRole(c *fiber.Ctx) error {
	var req assignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AssignRole(c.UserContext(), c.Params("id"), req.RoleID); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "role assigned"})
}
