package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/middleware"
	"github.com/sarvbloom/sarv-api/internal/rbac"
)

// RoleHandler exposes role administration endpoints.
type RoleHandler struct {
	svc *rbac.Service
}

// NewRoleHandler builds the role handler.
func NewRoleHandler(svc *rbac.Service) *RoleHandler {
	return &RoleHandler{svc: svc}
}

type roleRequest struct {
	Title       string   `json:"title"`
	Label       string   `json:"label"`
	Permissions []string `json:"permissions"`
}

type roleResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Label       string   `json:"label"`
	Permissions []string `json:"permissions"`
}

func toRoleResponse(role rbac.Role) roleResponse {
	perms := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		perms = append(perms, p.Title)
	}
	return roleResponse{ID: role.ID, Title: role.Title, Label: role.Label, Permissions: perms}
}

// Create adds a new role.
func (h *RoleHandler) Create(c *fiber.Ctx) error {
	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	role, err := h.svc.CreateRole(c.UserContext(), rbac.RoleInput{
		Title:         req.Title,
		Label:         req.Label,
		PermissionIDs: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toRoleResponse(role))
}

// List returns all roles.
func (h *RoleHandler) List(c *fiber.Ctx) error {
	roles, err := h.svc.ListRoles(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Get returns one role.
func (h *RoleHandler) Get(c *fiber.Ctx) error {
	role, err := h.svc.GetRole(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toRoleResponse(role))
}

// Update modifies a role.
func (h *RoleHandler) Update(c *fiber.Ctx) error {
	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	role, err := h.svc.UpdateRole(c.UserContext(), c.Params("id"), rbac.RoleInput{
		Title:         req.Title,
		Label:         req.Label,
		PermissionIDs: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toRoleResponse(role))
}

// Delete removes a role.
func (h *RoleHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.DeleteRole(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "role removed"})
}

// Permissions lists all known permissions.
func (h *RoleHandler) Permissions(c *fiber.Ctx) error {
	perms, err := h.svc.ListPermissions(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(perms)
}

// RegisterRoleRoutes wires role administration behind authentication and the
// capability table.
func RegisterRoleRoutes(r fiber.Router, h *RoleHandler, requireAuth fiber.Handler, guard *rbac.Guard) {
	group := r.Group("/role", requireAuth)
	group.Post("/", middleware.RequirePermissions(guard, requiredPermissions("POST", "/role")...), h.Create)
	group.Get("/", middleware.RequirePermissions(guard, requiredPermissions("GET", "/role")...), h.List)
	group.Get("/:id", middleware.RequirePermissions(guard, requiredPermissions("GET", "/role/:id")...), h.Get)
	group.Patch("/:id", middleware.RequirePermissions(guard, requiredPermissions("PATCH", "/role/:id")...), h.Update)
	group.Delete("/:id", middleware.RequirePermissions(guard, requiredPermissions("DELETE", "/role/:id")...), h.Delete)

	r.Get("/permission", requireAuth,
		middleware.RequirePermissions(guard, requiredPermissions("GET", "/permission")...), h.Permissions)
}
