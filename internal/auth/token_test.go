package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/cache"
)

func newTokenService(t *testing.T) (*TokenService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := cache.NewRedisStore(client)
	return NewTokenService("access-secret", "refresh-secret", 30*24*time.Hour, 365*24*time.Hour, store), mr
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, _ := newTokenService(t)

	token, err := svc.SignAccess("user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := svc.VerifyAccess(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != "user-1" {
		t.Fatalf("expected user-1, got %q", id)
	}
}

func TestAccessTokenTamperDetection(t *testing.T) {
	svc, _ := newTokenService(t)

	token, err := svc.SignAccess("user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Flip one byte of the signature.
	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	if _, err := svc.VerifyAccess(string(tampered)); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected Unauthorized for tampered token, got %v", err)
	}
}

func TestVerifyAccessRejectsGarbage(t *testing.T) {
	svc, _ := newTokenService(t)

	for _, token := range []string{"", "not-a-jwt", "a.b", "a.b.c"} {
		_, err := svc.VerifyAccess(token)
		if !apperr.IsKind(err, apperr.KindUnauthorized) {
			t.Fatalf("token %q: expected Unauthorized, got %v", token, err)
		}
		// Signature and shape failures must be indistinguishable.
		if err.Error() != authFailedMessage {
			t.Fatalf("token %q: unexpected message %q", token, err.Error())
		}
	}
}

func TestAccessAndRefreshSecretsAreIndependent(t *testing.T) {
	svc, _ := newTokenService(t)

	refresh, err := svc.SignRefresh(context.Background(), "09170000000")
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}
	if _, err := svc.VerifyAccess(refresh); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("refresh token must not verify as access token, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := newTokenService(t)
	ctx := context.Background()
	const phone = "09170000000"

	first, err := svc.SignRefresh(ctx, phone)
	if err != nil {
		t.Fatalf("first sign: %v", err)
	}
	if _, err := svc.VerifyRefresh(ctx, first); err != nil {
		t.Fatalf("first token must verify: %v", err)
	}

	time.Sleep(time.Second) // distinct iat so the tokens differ

	second, err := svc.SignRefresh(ctx, phone)
	if err != nil {
		t.Fatalf("second sign: %v", err)
	}
	if first == second {
		t.Fatalf("rotation must produce a new token")
	}

	// Only the latest token survives rotation.
	if _, err := svc.VerifyRefresh(ctx, first); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("superseded token must fail, got %v", err)
	}
	phoneOut, err := svc.VerifyRefresh(ctx, second)
	if err != nil {
		t.Fatalf("current token must verify: %v", err)
	}
	if phoneOut != phone {
		t.Fatalf("expected phone %q, got %q", phone, phoneOut)
	}
}

func TestRevokeRefresh(t *testing.T) {
	svc, _ := newTokenService(t)
	ctx := context.Background()
	const phone = "09170000000"

	token, err := svc.SignRefresh(ctx, phone)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := svc.RevokeRefresh(ctx, phone); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.VerifyRefresh(ctx, token); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("revoked token must fail, got %v", err)
	}
}

func TestRefreshCacheExpiry(t *testing.T) {
	svc, mr := newTokenService(t)
	ctx := context.Background()

	token, err := svc.SignRefresh(ctx, "09170000000")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	mr.FastForward(366 * 24 * time.Hour)

	if _, err := svc.VerifyRefresh(ctx, token); !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("expected Unauthorized after cache expiry, got %v", err)
	}
}

func TestNormalizeDigits(t *testing.T) {
	cases := map[string]string{
		"۰۹۱۷۰۰۰۰۰۰۰": "09170000000",
		"٠٩١٢٣٤٥":     "0912345",
		"09170000000": "09170000000",
		"code-۱۲۳۴۵":  "code-12345",
	}
	for in, want := range cases {
		if got := NormalizeDigits(in); got != want {
			t.Fatalf("NormalizeDigits(%q) = %q, want %q", in, got, want)
		}
	}
	if strings.ContainsAny(NormalizeDigits("۱۲۳٤٥"), "۰۱۲۳۴۵۶۷۸۹٠١٢٣٤٥٦٧٨٩") {
		t.Fatalf("normalized output must contain only ASCII digits")
	}
}
