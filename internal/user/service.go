// Package user hosts the user-management collaborator surface: profile
// access, password and phone changes, and role assignment. It calls into the
// auth core for OTP and token work but owns no token logic itself.
package user

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/auth"
	"github.com/sarvbloom/sarv-api/internal/identity"
	"github.com/sarvbloom/sarv-api/internal/otp"
	"github.com/sarvbloom/sarv-api/internal/rbac"
)

// Service manages account self-service and administrative user operations.
type Service struct {
	users  identity.Repository
	roles  rbac.Repository
	otp    *otp.Manager
	tokens *auth.TokenService
}

// NewService creates a user service.
func NewService(users identity.Repository, roles rbac.Repository, otpMgr *otp.Manager, tokens *auth.TokenService) *Service {
	return &Service{users: users, roles: roles, otp: otpMgr, tokens: tokens}
}

// Profile is the sanitized view of a user, without hash or fingerprint.
type Profile struct {
	ID            string `json:"id"`
	Phone         string `json:"phone"`
	NewPhone      string `json:"newPhone,omitempty"`
	PhoneVerified bool   `json:"phoneVerified"`
	RoleID        string `json:"roleId,omitempty"`
}

// ProfileOf strips credentials from a user record.
func ProfileOf(u identity.User) Profile {
	return Profile{
		ID:            u.ID,
		Phone:         u.Phone,
		NewPhone:      u.NewPhone,
		PhoneVerified: u.PhoneVerified,
		RoleID:        u.RoleID,
	}
}

// UpdatePassword sets a new password. When a password already exists the
// current one must be presented and match.
func (s *Service) UpdatePassword(ctx context.Context, user identity.User, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperr.BadRequest("password must be at least 6 characters")
	}

	if len(user.PasswordHash) > 0 {
		if currentPassword == "" {
			return apperr.Unauthorized("invalid credentials")
		}
		if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(currentPassword)); err != nil {
			return apperr.Unauthorized("invalid credentials")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// RequestPhoneUpdate stages a new phone for the account and issues an OTP with
// the update-phone purpose. The code must be verified before the swap lands.
func (s *Service) RequestPhoneUpdate(ctx context.Context, user identity.User, newPhone string) (string, error) {
	if newPhone == "" || newPhone == user.Phone {
		return "", apperr.BadRequest("a different phone number is required")
	}

	owner, err := s.users.FindByPhone(ctx, newPhone)
	if err == nil && owner.ID != user.ID {
		return "", apperr.Conflict("phone number is already registered")
	}
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return "", err
	}

	if err := s.users.StageNewPhone(ctx, user.ID, newPhone); err != nil {
		return "", err
	}
	return s.otp.Issue(ctx, user.ID, otp.PurposeUpdatePhone)
}

// VerifyPhoneUpdate completes a staged phone change. Refresh tokens bound to
// the old phone are revoked since their cache key no longer matches.
func (s *Service) VerifyPhoneUpdate(ctx context.Context, user identity.User, code string) (Profile, error) {
	if user.NewPhone == "" {
		return Profile{}, apperr.BadRequest("no phone change is pending")
	}

	if err := s.otp.Verify(ctx, user.ID, otp.PurposeUpdatePhone, code); err != nil {
		return Profile{}, err
	}

	if err := s.tokens.RevokeRefresh(ctx, user.Phone); err != nil {
		return Profile{}, err
	}
	if err := s.users.CommitNewPhone(ctx, user.ID); err != nil {
		return Profile{}, err
	}

	updated, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return Profile{}, err
	}
	return ProfileOf(updated), nil
}

// AssignRole gives the target user a new role. Administrative operation.
func (s *Service) AssignRole(ctx context.Context, targetID, roleID string) error {
	if _, err := s.roles.FindRoleByID(ctx, roleID); err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			return apperr.NotFound("role not found")
		}
		return err
	}
	err := s.users.UpdateRole(ctx, targetID, roleID)
	if errors.Is(err, identity.ErrNotFound) {
		return apperr.NotFound("account not found")
	}
	return err
}

// Get loads a user by id for administrative views.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, identity.ErrNotFound) {
		return Profile{}, apperr.NotFound("account not found")
	}
	if err != nil {
		return Profile{}, err
	}
	return ProfileOf(user), nil
}
