package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/cache"
)

// Failure messages are deliberately generic: signature and shape failures are
// indistinguishable to the caller.
const (
	authFailedMessage          = "authentication failed"
	invalidRefreshTokenMessage = "invalid refresh token"
)

type accessClaims struct {
	IdentityID string `json:"identityId"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens. Access tokens are
// stateless; refresh tokens are mirrored in the challenge cache per phone so
// they can be rotated and revoked.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	store         cache.Store
}

// NewTokenService builds a TokenService. The two secrets are independent so a
// compromise of one does not invalidate the other token class.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, store cache.Store) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		store:         store,
	}
}

// SignAccess issues a signed access token carrying the identity id.
func (t *TokenService) SignAccess(identityID string) (string, error) {
	claims := accessClaims{
		IdentityID: identityID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
}

// VerifyAccess validates signature, expiry and claim shape, returning the
// identity id. Every failure collapses to the same Unauthorized error.
func (t *TokenService) VerifyAccess(token string) (string, error) {
	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.IdentityID == "" {
		return "", apperr.Unauthorized(authFailedMessage)
	}
	return claims.IdentityID, nil
}

// SignRefresh issues a signed refresh token for the phone and stores it as the
// single valid refresh token for that phone. The overwrite is the rotation
// point: the previous token stops verifying the moment this write lands.
func (t *TokenService) SignRefresh(ctx context.Context, phone string) (string, error) {
	claims := refreshClaims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.refreshTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
	if err != nil {
		return "", err
	}
	if err := t.store.Set(ctx, RefreshKey(phone), token, t.refreshTTL); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyRefresh validates the token and checks it against the cached value for
// its phone. An absent or different cached value means the token was revoked
// or superseded by rotation.
func (t *TokenService) VerifyRefresh(ctx context.Context, token string) (string, error) {
	var claims refreshClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.refreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.Phone == "" {
		return "", apperr.Unauthorized(invalidRefreshTokenMessage)
	}

	var current string
	err = t.store.Get(ctx, RefreshKey(claims.Phone), &current)
	if errors.Is(err, cache.ErrMiss) {
		return "", apperr.Unauthorized(invalidRefreshTokenMessage)
	}
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(current), []byte(token)) != 1 {
		return "", apperr.Unauthorized(invalidRefreshTokenMessage)
	}
	return claims.Phone, nil
}

// RevokeRefresh drops the cached refresh token for the phone.
func (t *TokenService) RevokeRefresh(ctx context.Context, phone string) error {
	return t.store.Del(ctx, RefreshKey(phone))
}

// RefreshKey returns the cache key holding the current refresh token for a phone.
func RefreshKey(phone string) string {
	return "refresh_" + phone
}
