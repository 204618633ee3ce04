package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sarvbloom/sarv-api/internal/apperr"
)

// Service manages role administration. The protected "admin" and "user" roles
// may not be renamed or deleted.
type Service struct {
	repo Repository
}

// NewService creates a new role service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RoleInput carries the caller-supplied role fields.
type RoleInput struct {
	Title         string
	Label         string
	PermissionIDs []string
}

// CreateRole validates uniqueness and permission references, then stores the role.
func (s *Service) CreateRole(ctx context.Context, input RoleInput) (Role, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Label = strings.TrimSpace(input.Label)
	if input.Title == "" || input.Label == "" {
		return Role{}, apperr.BadRequest("role title and label are required")
	}

	if err := s.checkDuplicate(ctx, input.Title, ""); err != nil {
		return Role{}, err
	}
	if err := s.checkDuplicate(ctx, input.Label, ""); err != nil {
		return Role{}, err
	}

	perms, err := s.resolvePermissions(ctx, input.PermissionIDs)
	if err != nil {
		return Role{}, err
	}

	role := Role{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Label:       input.Label,
		Permissions: perms,
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	role, err := s.repo.FindRoleByID(ctx, id)
	if errors.Is(err, ErrRoleNotFound) {
		return Role{}, apperr.NotFound("role not found")
	}
	return role, err
}

// ListRoles returns all roles with their permissions.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions returns all known permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// UpdateRole applies changes to a non-protected role. Empty fields keep their
// current value; the permission set is replaced wholesale.
func (s *Service) UpdateRole(ctx context.Context, id string, input RoleInput) (Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.Protected() {
		return Role{}, apperr.BadRequest("protected roles cannot be updated")
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Label = strings.TrimSpace(input.Label)
	if input.Title != "" {
		if err := s.checkDuplicate(ctx, input.Title, id); err != nil {
			return Role{}, err
		}
		role.Title = input.Title
	}
	if input.Label != "" {
		if err := s.checkDuplicate(ctx, input.Label, id); err != nil {
			return Role{}, err
		}
		role.Label = input.Label
	}

	perms, err := s.resolvePermissions(ctx, input.PermissionIDs)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms

	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a non-protected role.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.Protected() {
		return apperr.BadRequest("protected roles cannot be removed")
	}
	return s.repo.DeleteRole(ctx, id)
}

func (s *Service) checkDuplicate(ctx context.Context, titleOrLabel, excludeID string) error {
	exists, err := s.repo.RoleExists(ctx, titleOrLabel, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("a role with this title or label already exists")
	}
	return nil
}

// resolvePermissions looks up the referenced permissions, silently dropping
// unknown ids the way the surrounding application always has.
func (s *Service) resolvePermissions(ctx context.Context, ids []string) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	perms := make([]Permission, 0, len(ids))
	for _, id := range ids {
		perm, err := s.repo.FindPermissionByID(ctx, id)
		if errors.Is(err, ErrPermissionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, nil
}
