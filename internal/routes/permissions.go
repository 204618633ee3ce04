package routes

import "github.com/sarvbloom/sarv-api/internal/rbac"

// routePermissions is the explicit capability table: every protected route
// names the permission set it requires, and registration consults this table
// instead of per-handler metadata. Routes absent from the table require
// authentication only.
var routePermissions = map[string][]string{
	"POST /role":         {rbac.PermRoleManagement},
	"GET /role":          {rbac.PermRoleManagement},
	"GET /role/:id":      {rbac.PermRoleManagement},
	"PATCH /role/:id":    {rbac.PermRoleManagement},
	"DELETE /role/:id":   {rbac.PermRoleManagement},
	"GET /permission":    {rbac.PermRoleManagement},
	"PUT /user/:id/role": {rbac.PermUserRole},
}

// requiredPermissions resolves a route's declared permission set.
func requiredPermissions(method, path string) []string {
	return routePermissions[method+" "+path]
}
