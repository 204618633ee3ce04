package rbac

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	roles map[string]Role       // keyed by id
	perms map[string]Permission // keyed by title
}

// NewMemoryRepository builds an in-memory role/permission store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		roles: make(map[string]Role),
		perms: make(map[string]Permission),
	}
}

func (r *memoryRepository) CreateRole(_ context.Context, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.ID] = role
	return nil
}

func (r *memoryRepository) FindRoleByID(_ context.Context, id string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (r *memoryRepository) FindRoleByTitle(_ context.Context, title string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if role.Title == title {
			return role, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (r *memoryRepository) RoleExists(_ context.Context, titleOrLabel, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if role.ID == excludeID {
			continue
		}
		if role.Title == titleOrLabel || role.Label == titleOrLabel {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) UpdateRole(_ context.Context, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.ID]; !ok {
		return ErrRoleNotFound
	}
	r.roles[role.ID] = role
	return nil
}

func (r *memoryRepository) DeleteRole(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return ErrRoleNotFound
	}
	delete(r.roles, id)
	return nil
}

func (r *memoryRepository) ListRoles(_ context.Context) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (r *memoryRepository) ListPermissions(_ context.Context) ([]Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perms := make([]Permission, 0, len(r.perms))
	for _, perm := range r.perms {
		perms = append(perms, perm)
	}
	return perms, nil
}

func (r *memoryRepository) FindPermissionByID(_ context.Context, id string) (Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, perm := range r.perms {
		if perm.ID == id {
			return perm, nil
		}
	}
	return Permission{}, ErrPermissionNotFound
}

func (r *memoryRepository) EnsurePermission(_ context.Context, title string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if perm, ok := r.perms[title]; ok {
		return perm, nil
	}
	perm := Permission{ID: uuid.NewString(), Title: title}
	r.perms[title] = perm
	return perm, nil
}
