package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors shared by repository implementations.
var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
)

// Repository persists roles and permissions. Roles always load with their
// permission set attached.
type Repository interface {
	CreateRole(ctx context.Context, role Role) error
	FindRoleByID(ctx context.Context, id string) (Role, error)
	FindRoleByTitle(ctx context.Context, title string) (Role, error)
	// RoleExists reports whether any role other than excludeID uses the value
	// as its title or label.
	RoleExists(ctx context.Context, titleOrLabel, excludeID string) (bool, error)
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id string) error
	ListRoles(ctx context.Context) ([]Role, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermissionByID(ctx context.Context, id string) (Permission, error)
	// EnsurePermission creates the permission if missing and returns it.
	EnsurePermission(ctx context.Context, title string) (Permission, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed role/permission repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateRole inserts a role and its permission links in one transaction.
func (r *PostgresRepository) CreateRole(ctx context.Context, role Role) error {
	roleID, err := uuid.Parse(role.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO roles (id, title, label) VALUES ($1, $2, $3)`,
		roleID, role.Title, role.Label); err != nil {
		return err
	}
	if err := insertRolePermissions(ctx, tx, roleID, role.Permissions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindRoleByID fetches a role with its permissions.
func (r *PostgresRepository) FindRoleByID(ctx context.Context, id string) (Role, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return Role{}, ErrRoleNotFound
	}
	return r.findRole(ctx, `WHERE r.id = $1`, roleID)
}

// FindRoleByTitle fetches a role with its permissions.
func (r *PostgresRepository) FindRoleByTitle(ctx context.Context, title string) (Role, error) {
	return r.findRole(ctx, `WHERE r.title = $1`, title)
}

// RoleExists checks title/label uniqueness for role creation and renames.
func (r *PostgresRepository) RoleExists(ctx context.Context, titleOrLabel, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM roles WHERE (title = $1 OR label = $1)`
	args := []any{titleOrLabel}
	if excludeID != "" {
		excluded, err := uuid.Parse(excludeID)
		if err != nil {
			return false, err
		}
		query += ` AND id <> $2`
		args = append(args, excluded)
	}
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateRole rewrites the role row and replaces its permission links.
func (r *PostgresRepository) UpdateRole(ctx context.Context, role Role) error {
	roleID, err := uuid.Parse(role.ID)
	if err != nil {
		return ErrRoleNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cmd, err := tx.Exec(ctx, `UPDATE roles SET title = $1, label = $2 WHERE id = $3`,
		role.Title, role.Label, roleID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	if err := insertRolePermissions(ctx, tx, roleID, role.Permissions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteRole removes the role; permission links cascade.
func (r *PostgresRepository) DeleteRole(ctx context.Context, id string) error {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return ErrRoleNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// ListRoles returns every role with its permissions attached.
func (r *PostgresRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title, label FROM roles ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var (
			id   uuid.UUID
			role Role
		)
		if err := rows.Scan(&id, &role.Title, &role.Label); err != nil {
			return nil, err
		}
		role.ID = id.String()
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range roles {
		perms, err := r.rolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

// ListPermissions returns all known permissions.
func (r *PostgresRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title FROM permissions ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// FindPermissionByID fetches a single permission.
func (r *PostgresRepository) FindPermissionByID(ctx context.Context, id string) (Permission, error) {
	permID, err := uuid.Parse(id)
	if err != nil {
		return Permission{}, ErrPermissionNotFound
	}
	var perm Permission
	var pid uuid.UUID
	err = r.db.QueryRow(ctx, `SELECT id, title FROM permissions WHERE id = $1`, permID).Scan(&pid, &perm.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrPermissionNotFound
	}
	if err != nil {
		return Permission{}, err
	}
	perm.ID = pid.String()
	return perm, nil
}

// EnsurePermission creates the permission when absent. Used by seeding.
func (r *PostgresRepository) EnsurePermission(ctx context.Context, title string) (Permission, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO permissions (id, title) VALUES ($1, $2)
        ON CONFLICT (title) DO NOTHING`, uuid.New(), title)
	if err != nil {
		return Permission{}, err
	}
	var perm Permission
	var pid uuid.UUID
	if err := r.db.QueryRow(ctx, `SELECT id, title FROM permissions WHERE title = $1`, title).Scan(&pid, &perm.Title); err != nil {
		return Permission{}, err
	}
	perm.ID = pid.String()
	return perm, nil
}

func (r *PostgresRepository) findRole(ctx context.Context, where string, arg any) (Role, error) {
	var (
		id   uuid.UUID
		role Role
	)
	err := r.db.QueryRow(ctx, `SELECT r.id, r.title, r.label FROM roles r `+where, arg).
		Scan(&id, &role.Title, &role.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrRoleNotFound
	}
	if err != nil {
		return Role{}, err
	}
	role.ID = id.String()

	perms, err := r.rolePermissions(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (r *PostgresRepository) rolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	rid, err := uuid.Parse(roleID)
	if err != nil {
		return nil, fmt.Errorf("invalid role id %q", roleID)
	}
	rows, err := r.db.Query(ctx, `SELECT p.id, p.title FROM permissions p
        INNER JOIN role_permissions rp ON rp.permission_id = p.id
        WHERE rp.role_id = $1 ORDER BY p.title`, rid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func insertRolePermissions(ctx context.Context, tx pgx.Tx, roleID uuid.UUID, perms []Permission) error {
	for _, perm := range perms {
		permID, err := uuid.Parse(perm.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`,
			roleID, permID); err != nil {
			return err
		}
	}
	return nil
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var (
			id   uuid.UUID
			perm Permission
		)
		if err := rows.Scan(&id, &perm.Title); err != nil {
			return nil, err
		}
		perm.ID = id.String()
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}
