package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Repository persists users. The auth core never hard-deletes a user.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	// UpdateToken stores the access-token fingerprint; an empty token clears it.
	UpdateToken(ctx context.Context, id, token string) error
	MarkPhoneVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	// StageNewPhone records a pending phone change awaiting OTP verification.
	StageNewPhone(ctx context.Context, id, phone string) error
	// CommitNewPhone promotes the staged phone to the primary one.
	CommitNewPhone(ctx context.Context, id string) error
	UpdateRole(ctx context.Context, id, roleID string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, phone, new_phone, phone_verified, password_hash, token, role_id, created_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	var roleID any
	if user.RoleID != "" {
		if roleID, err = uuid.Parse(user.RoleID); err != nil {
			return err
		}
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, phone, new_phone, phone_verified, password_hash, token, role_id, created_at)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8)`,
		userID, user.Phone, user.NewPhone, user.PhoneVerified, user.PasswordHash, user.Token, roleID, user.CreatedAt.UTC())
	return err
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

// UpdateToken stores or clears the access-token fingerprint.
func (r *PostgresRepository) UpdateToken(ctx context.Context, id, token string) error {
	return r.exec(ctx, `UPDATE users SET token = NULLIF($1, '') WHERE id = $2`, token, id)
}

// MarkPhoneVerified flags the user's phone number as verified.
func (r *PostgresRepository) MarkPhoneVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET phone_verified = TRUE WHERE id = $1`, id)
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
}

// StageNewPhone records a pending phone change.
func (r *PostgresRepository) StageNewPhone(ctx context.Context, id, phone string) error {
	return r.exec(ctx, `UPDATE users SET new_phone = $1 WHERE id = $2`, phone, id)
}

// CommitNewPhone promotes the staged phone and keeps the account verified.
func (r *PostgresRepository) CommitNewPhone(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET phone = new_phone, new_phone = NULL, phone_verified = TRUE
        WHERE id = $1 AND new_phone IS NOT NULL`, id)
}

// UpdateRole assigns a role to the user.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id, roleID string) error {
	rid, err := uuid.Parse(roleID)
	if err != nil {
		return err
	}
	return r.exec(ctx, `UPDATE users SET role_id = $1 WHERE id = $2`, rid, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	last := len(args) - 1
	userID, err := uuid.Parse(args[last].(string))
	if err != nil {
		return ErrNotFound
	}
	args[last] = userID
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		newPhone  *string
		token     *string
		roleID    *uuid.UUID
		createdAt time.Time
		user      User
	)
	err := row.Scan(&id, &user.Phone, &newPhone, &user.PhoneVerified, &user.PasswordHash, &token, &roleID, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.ID = id.String()
	if newPhone != nil {
		user.NewPhone = *newPhone
	}
	if token != nil {
		user.Token = *token
	}
	if roleID != nil {
		user.RoleID = roleID.String()
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
