package otp

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/cache"
)

func newManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewManager(cache.NewRedisStore(client), DefaultTTL), mr
}

func TestIssueGeneratesFiveDigitCode(t *testing.T) {
	mgr, _ := newManager(t)

	code, err := mgr.Issue(context.Background(), "id-1", PurposeAuth)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != 5 {
		t.Fatalf("expected 5-digit code, got %q", code)
	}
	if code[0] == '0' {
		t.Fatalf("code must be in 10000..99999, got %q", code)
	}
}

func TestIssueConflictsWhileChallengeLive(t *testing.T) {
	mgr, mr := newManager(t)
	ctx := context.Background()

	first, err := mgr.Issue(ctx, "id-1", PurposeAuth)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}

	_, err = mgr.Issue(ctx, "id-1", PurposeAuth)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}

	// The live challenge survives the rejected issue.
	if err := mgr.Verify(ctx, "id-1", PurposeAuth, first); err != nil {
		t.Fatalf("original code must still verify: %v", err)
	}

	// After the TTL elapses issuance succeeds again.
	mr.FastForward(DefaultTTL + time.Second)
	if _, err := mgr.Issue(ctx, "id-1", PurposeAuth); err != nil {
		t.Fatalf("issue after expiry: %v", err)
	}
}

func TestIssueIsScopedPerIdentityAndPurpose(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	if _, err := mgr.Issue(ctx, "id-1", PurposeAuth); err != nil {
		t.Fatalf("issue auth: %v", err)
	}
	// Same identity, different purpose: no conflict.
	if _, err := mgr.Issue(ctx, "id-1", PurposeUpdatePhone); err != nil {
		t.Fatalf("issue update-phone: %v", err)
	}
	// Different identity, same purpose: no conflict.
	if _, err := mgr.Issue(ctx, "id-2", PurposeAuth); err != nil {
		t.Fatalf("issue for second identity: %v", err)
	}
}

func TestVerifyRejectsWrongCodeAndPurpose(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	code, err := mgr.Issue(ctx, "id-1", PurposeAuth)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := mgr.Verify(ctx, "id-1", PurposeAuth, "00000"); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("wrong code: expected Unauthorized, got %v", err)
	}
	// A code issued for auth cannot satisfy the update-phone flow.
	if err := mgr.Verify(ctx, "id-1", PurposeUpdatePhone, code); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("wrong purpose: expected Unauthorized, got %v", err)
	}
	if err := mgr.Verify(ctx, "id-1", PurposeAuth, code); err != nil {
		t.Fatalf("correct code must verify: %v", err)
	}
}

func TestVerifyAfterExpiry(t *testing.T) {
	mgr, mr := newManager(t)
	ctx := context.Background()

	code, err := mgr.Issue(ctx, "id-1", PurposeAuth)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.FastForward(DefaultTTL + time.Second)

	if err := mgr.Verify(ctx, "id-1", PurposeAuth, code); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected Unauthorized after TTL, got %v", err)
	}
}

func TestVerifyNeverIssued(t *testing.T) {
	mgr, _ := newManager(t)

	err := mgr.Verify(context.Background(), "ghost", PurposeAuth, "12345")
	if !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}
