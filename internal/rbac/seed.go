package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Seed ensures every known permission exists and creates the protected roles:
// "admin" holding the full permission set and the bare default "user" role.
// Existing roles are left untouched.
func Seed(ctx context.Context, repo Repository) error {
	perms := make([]Permission, 0, len(AllPermissions()))
	for _, title := range AllPermissions() {
		perm, err := repo.EnsurePermission(ctx, title)
		if err != nil {
			return err
		}
		perms = append(perms, perm)
	}

	seeds := []Role{
		{ID: uuid.NewString(), Title: RoleAdmin, Label: "Admin", Permissions: perms},
		{ID: uuid.NewString(), Title: RoleUser, Label: "User"},
	}
	for _, role := range seeds {
		_, err := repo.FindRoleByTitle(ctx, role.Title)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrRoleNotFound) {
			return err
		}
		if err := repo.CreateRole(ctx, role); err != nil {
			return err
		}
	}
	return nil
}
