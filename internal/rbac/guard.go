package rbac

import (
	"context"
	"errors"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/identity"
)

// Every denial carries the same message so callers learn nothing about which
// permission was missing.
const accessDeniedMessage = "access denied"

// Guard authorizes an identity against a declared required-permission set.
type Guard struct {
	repo Repository
}

// NewGuard creates a permission guard backed by the role store.
func NewGuard(repo Repository) *Guard {
	return &Guard{repo: repo}
}

// Authorize allows the call when the required set is empty, and otherwise
// resolves the user's role and checks its permissions. The bare default "user"
// role is denied without inspecting its (empty) permission set.
func (g *Guard) Authorize(ctx context.Context, user *identity.User, required ...string) error {
	if len(required) == 0 {
		return nil
	}
	if user == nil || user.RoleID == "" {
		return apperr.Forbidden(accessDeniedMessage)
	}

	role, err := g.repo.FindRoleByID(ctx, user.RoleID)
	if errors.Is(err, ErrRoleNotFound) {
		return apperr.Forbidden(accessDeniedMessage)
	}
	if err != nil {
		return err
	}

	if role.Title == RoleUser {
		return apperr.Forbidden(accessDeniedMessage)
	}

	if !role.HasPermission(required) {
		return apperr.Forbidden(accessDeniedMessage)
	}
	return nil
}
