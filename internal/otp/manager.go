// Package otp implements the one-time-passcode lifecycle over the challenge
// cache. At most one live challenge may exist per (identity, purpose); the
// cache's atomic set-if-absent write enforces that without any extra locking.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sarvbloom/sarv-api/internal/apperr"
	"github.com/sarvbloom/sarv-api/internal/cache"
)

// Purposes a challenge can be issued for.
const (
	PurposeAuth        = "auth"
	PurposeUpdatePhone = "update-phone"
)

const (
	// DefaultTTL is the fixed window a code stays usable.
	DefaultTTL = 2 * time.Minute

	codeMin = 10000
	codeMax = 99999
)

// Challenge is the cache-resident OTP record. Expiry is carried for delivery
// messages only; the cache TTL is authoritative.
type Challenge struct {
	Code      string    `json:"code"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager creates and verifies one-time codes.
type Manager struct {
	store cache.Store
	ttl   time.Duration
}

// NewManager builds a Manager over the given challenge store. A non-positive
// ttl falls back to DefaultTTL.
func NewManager(store cache.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// Issue generates a 5-digit code for the identity and purpose. It fails with
// Conflict while a live challenge exists; the rejected write never overwrites
// the stored code.
func (m *Manager) Issue(ctx context.Context, identityID, purpose string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}

	challenge := Challenge{
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(m.ttl),
	}

	stored, err := m.store.SetIfAbsent(ctx, Key(identityID, purpose), challenge, m.ttl)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "otp storage failure", err)
	}
	if !stored {
		return "", apperr.Conflict("an otp code was already sent and has not expired yet")
	}
	return code, nil
}

// Verify checks the presented code against the stored challenge. An absent
// challenge covers both "never issued" and "expired" since the cache TTL is
// authoritative. The challenge is not deleted on success; the TTL reclaims it.
func (m *Manager) Verify(ctx context.Context, identityID, purpose, code string) error {
	var challenge Challenge
	err := m.store.Get(ctx, Key(identityID, purpose), &challenge)
	if errors.Is(err, cache.ErrMiss) {
		return apperr.Unauthorized("otp code has expired or was never sent")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "otp storage failure", err)
	}

	if challenge.Purpose != purpose || challenge.Code != code {
		return apperr.Unauthorized("invalid otp code")
	}
	return nil
}

// Key returns the cache key for an (identity, purpose) pair. Purposes share
// one keying scheme so codes issued for one flow can never satisfy another.
func Key(identityID, purpose string) string {
	return fmt.Sprintf("OTP_%s_%s", identityID, purpose)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
