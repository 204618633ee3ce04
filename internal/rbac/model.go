package rbac

// Known permission titles. PermMaster is the sentinel: any role holding it
// passes every permission check unconditionally.
const (
	PermMaster         = "master"
	PermRoleManagement = "role_management"
	PermUsersData      = "users_data"
	PermUserRole       = "user_role"
	PermGalleryManager = "gallery_manager"
	PermBlogWriter     = "blog_writer"
	PermBlogManager    = "blog_manager"
)

// Protected role titles that administrative operations may not rename or delete.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Permission is an atomic authorization capability.
type Permission struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Role is a named bundle of permissions.
type Role struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Label       string       `json:"label"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission reports whether the role grants any of the required permission
// titles, honouring the master sentinel.
func (r Role) HasPermission(required []string) bool {
	for _, perm := range r.Permissions {
		if perm.Title == PermMaster {
			return true
		}
		for _, want := range required {
			if perm.Title == want {
				return true
			}
		}
	}
	return false
}

// Protected reports whether the role may not be renamed or deleted.
func (r Role) Protected() bool {
	switch r.Title {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// AllPermissions lists every permission title the system knows about, in seed order.
func AllPermissions() []string {
	return []string{
		PermMaster,
		PermRoleManagement,
		PermUsersData,
		PermUserRole,
		PermGalleryManager,
		PermBlogWriter,
		PermBlogManager,
	}
}
