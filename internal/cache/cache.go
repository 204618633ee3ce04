// Package cache provides the ephemeral challenge store backing OTP codes and
// refresh-token pointers. All expiry is delegated to the backing TTL; nothing
// here sweeps for expired state.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or its TTL has elapsed.
var ErrMiss = errors.New("cache: key not found")

// Store is a key-value store with per-key expiry. Values are JSON-encoded.
// SetIfAbsent is the sole concurrency-control primitive for OTP issuance: it
// must be atomic with respect to concurrent callers.
type Store interface {
	// Get decodes the value under key into dest, or returns ErrMiss.
	Get(ctx context.Context, key string, dest any) error
	// Set writes value under key, overwriting any prior value.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// SetIfAbsent writes value only when no live value exists under key.
	// It reports whether the write happened.
	SetIfAbsent(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}
