package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/identity"
	"github.com/sarvbloom/sarv-api/internal/otp"
	"github.com/sarvbloom/sarv-api/internal/rbac"
)

const accountNotFoundMessage = "account not found"

// TokenPair is the result of every successful login path.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service is the auth orchestrator: it composes the user store, the OTP
// manager and the token service into the public login flows.
type Service struct {
	users  identity.Repository
	roles  rbac.Repository
	otp    *otp.Manager
	tokens *TokenService
	logger *slog.Logger
}

// NewService creates the auth orchestrator.
func NewService(users identity.Repository, roles rbac.Repository, otpMgr *otp.Manager, tokens *TokenService, logger *slog.Logger) *Service {
	return &Service{users: users, roles: roles, otp: otpMgr, tokens: tokens, logger: logger}
}

// CheckExistence reports whether an account exists for the phone. No side effects.
func (s *Service) CheckExistence(ctx context.Context, phone string) (bool, error) {
	_, err := s.users.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RequestOTP issues an auth challenge for the phone, lazily creating the
// account with the default "user" role on first contact. A still-live
// challenge propagates as Conflict.
func (s *Service) RequestOTP(ctx context.Context, phone string) (string, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		user, err = s.createUser(ctx, phone)
	}
	if err != nil {
		return "", err
	}

	code, err := s.otp.Issue(ctx, user.ID, otp.PurposeAuth)
	if err != nil {
		return "", err
	}

	s.logger.Info("otp issued", slog.String("user_id", user.ID))
	return code, nil
}

// VerifyOTP checks the presented code and logs the user in, marking the phone
// verified on first success.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (TokenPair, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return TokenPair{}, apperr.NotFound(accountNotFoundMessage)
	}
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.otp.Verify(ctx, user.ID, otp.PurposeAuth, code); err != nil {
		return TokenPair{}, err
	}

	if !user.PhoneVerified {
		if err := s.users.MarkPhoneVerified(ctx, user.ID); err != nil {
			return TokenPair{}, err
		}
	}

	return s.issuePair(ctx, user)
}

// Login authenticates with phone and password. Password login is only open to
// accounts that completed phone verification at least once.
func (s *Service) Login(ctx context.Context, phone, password string) (TokenPair, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return TokenPair{}, apperr.NotFound(accountNotFoundMessage)
	}
	if err != nil {
		return TokenPair{}, err
	}

	if !user.PhoneVerified {
		return TokenPair{}, apperr.BadRequest("phone number is not verified")
	}

	if password == "" || len(user.PasswordHash) == 0 {
		return TokenPair{}, apperr.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid credentials")
	}

	return s.issuePair(ctx, user)
}

// Refresh rotates the token pair. Note a narrow race: two concurrent calls
// with the same pre-rotation token can both pass VerifyRefresh before either
// cache write lands; only the later write wins the next round. There is no
// single-flight lock per phone, matching the accepted product behavior.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	phone, err := s.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return TokenPair{}, apperr.NotFound(accountNotFoundMessage)
	}
	if err != nil {
		return TokenPair{}, err
	}

	return s.issuePair(ctx, user)
}

// Logout clears the access-token fingerprint and drops the cached refresh
// token. Both effects together make previously issued tokens unusable even
// though their signatures stay valid until natural expiry.
func (s *Service) Logout(ctx context.Context, user identity.User) error {
	if err := s.users.UpdateToken(ctx, user.ID, ""); err != nil {
		return err
	}
	if err := s.tokens.RevokeRefresh(ctx, user.Phone); err != nil {
		return err
	}
	s.logger.Info("user logged out", slog.String("user_id", user.ID))
	return nil
}

// ValidateAccessToken verifies the token signature, loads the identity and
// cross-checks the stored fingerprint. The fingerprint check is what makes
// logout and token replacement effective despite stateless signing.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (identity.User, error) {
	id, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return identity.User{}, err
	}

	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, apperr.Unauthorized(authFailedMessage)
	}
	if err != nil {
		return identity.User{}, err
	}

	if user.Token != token {
		return identity.User{}, apperr.Unauthorized(authFailedMessage)
	}
	return user, nil
}

func (s *Service) createUser(ctx context.Context, phone string) (identity.User, error) {
	role, err := s.roles.FindRoleByTitle(ctx, rbac.RoleUser)
	if err != nil {
		return identity.User{}, fmt.Errorf("default role lookup: %w", err)
	}
	user := identity.User{
		ID:        uuid.NewString(),
		Phone:     phone,
		RoleID:    role.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return identity.User{}, err
	}
	s.logger.Info("account created", slog.String("user_id", user.ID))
	return user, nil
}

// issuePair signs both tokens and persists the access-token fingerprint so a
// presented token can later be checked against "is this still the token on
// record".
func (s *Service) issuePair(ctx context.Context, user identity.User) (TokenPair, error) {
	access, err := s.tokens.SignAccess(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.SignRefresh(ctx, user.Phone)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.UpdateToken(ctx, user.ID, access); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
