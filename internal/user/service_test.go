package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/auth"
	"github.com/sarvbloom/sarv-api/internal/cache"
	"github.com/sarvbloom/sarv-api/internal/identity"
	"github.com/sarvbloom/sarv-api/internal/otp"
	"github.com/sarvbloom/sarv-api/internal/rbac"
)

type fixture struct {
	svc    *Service
	users  identity.Repository
	roles  rbac.Repository
	otp    *otp.Manager
	tokens *auth.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cache.NewMemoryStore()
	users := identity.NewMemoryRepository()
	roles := rbac.NewMemoryRepository()
	if err := rbac.Seed(context.Background(), roles); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tokens := auth.NewTokenService("access-secret", "refresh-secret", time.Hour, time.Hour, store)
	otpMgr := otp.NewManager(store, otp.DefaultTTL)
	return &fixture{
		svc:    NewService(users, roles, otpMgr, tokens),
		users:  users,
		roles:  roles,
		otp:    otpMgr,
		tokens: tokens,
	}
}

func (f *fixture) createUser(t *testing.T, phone string) identity.User {
	t.Helper()
	user := identity.User{ID: uuid.NewString(), Phone: phone, PhoneVerified: true}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestUpdatePasswordFirstTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "09170000000")

	if err := f.svc.UpdatePassword(ctx, user, "", "hunter2"); err != nil {
		t.Fatalf("first password set: %v", err)
	}

	stored, _ := f.users.FindByID(ctx, user.ID)
	if err := bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("hunter2")); err != nil {
		t.Fatalf("stored hash must match new password: %v", err)
	}
}

func TestUpdatePasswordRequiresCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "09170000000")

	if err := f.svc.UpdatePassword(ctx, user, "", "hunter2"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	user, _ = f.users.FindByID(ctx, user.ID)

	if err := f.svc.UpdatePassword(ctx, user, "wrong", "newpass1"); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected Unauthorized for wrong current password, got %v", err)
	}
	if err := f.svc.UpdatePassword(ctx, user, "", "newpass1"); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected Unauthorized for missing current password, got %v", err)
	}
	if err := f.svc.UpdatePassword(ctx, user, "hunter2", "short"); !apperr.IsKind(err, apperr.KindBadRequest) {
		t.Fatalf("expected BadRequest for short password, got %v", err)
	}
	if err := f.svc.UpdatePassword(ctx, user, "hunter2", "newpass1"); err != nil {
		t.Fatalf("update with correct current password: %v", err)
	}
}

func TestPhoneUpdateFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "09170000000")
	const newPhone = "09171111111"

	code, err := f.svc.RequestPhoneUpdate(ctx, user, newPhone)
	if err != nil {
		t.Fatalf("request phone update: %v", err)
	}

	// Refresh token bound to the old phone exists before the swap.
	if _, err := f.tokens.SignRefresh(ctx, user.Phone); err != nil {
		t.Fatalf("sign refresh: %v", err)
	}

	user, _ = f.users.FindByID(ctx, user.ID)
	profile, err := f.svc.VerifyPhoneUpdate(ctx, user, code)
	if err != nil {
		t.Fatalf("verify phone update: %v", err)
	}
	if profile.Phone != newPhone || profile.NewPhone != "" {
		t.Fatalf("unexpected profile after swap: %+v", profile)
	}
}

func TestPhoneUpdateRejectsTakenPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "09170000000")
	f.createUser(t, "09171111111")

	_, err := f.svc.RequestPhoneUpdate(ctx, user, "09171111111")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict for taken phone, got %v", err)
	}

	_, err = f.svc.RequestPhoneUpdate(ctx, user, user.Phone)
	if !apperr.IsKind(err, apperr.KindBadRequest) {
		t.Fatalf("expected BadRequest for same phone, got %v", err)
	}
}

func TestPhoneUpdateOTPIsPurposeBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "09170000000")

	// A code issued for login must not complete a phone change.
	authCode, err := f.otp.Issue(ctx, user.ID, otp.PurposeAuth)
	if err != nil {
		t.Fatalf("issue auth otp: %v", err)
	}
	if _, err := f.svc.RequestPhoneUpdate(ctx, user, "09171111111"); err != nil {
		t.Fatalf("request phone update: %v", err)
	}
	user, _ = f.users.FindByID(ctx, user.ID)

	if _, err := f.svc.VerifyPhoneUpdate(ctx, user, authCode); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected Unauthorized for cross-purpose code, got %v", err)
	}
}

func TestVerifyPhoneUpdateWithoutPending(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "09170000000")

	_, err := f.svc.VerifyPhoneUpdate(context.Background(), user, "12345")
	if !apperr.IsKind(err, apperr.KindBadRequest) {
		t.Fatalf("expected BadRequest without a pending change, got %v", err)
	}
}

func TestAssignRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "09170000000")

	admin, err := f.roles.FindRoleByTitle(ctx, rbac.RoleAdmin)
	if err != nil {
		t.Fatalf("find admin role: %v", err)
	}

	if err := f.svc.AssignRole(ctx, user.ID, admin.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	stored, _ := f.users.FindByID(ctx, user.ID)
	if stored.RoleID != admin.ID {
		t.Fatalf("role not persisted")
	}

	if err := f.svc.AssignRole(ctx, user.ID, "missing-role"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound for unknown role, got %v", err)
	}
	if err := f.svc.AssignRole(ctx, "missing-user", admin.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound for unknown user, got %v", err)
	}
}
