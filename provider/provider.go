// Package provider defines the byte store behind the render cache and the
// validation-flag cache.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for a key. Stores that compress internally must
// fully reverse it.
//
// The keyspaces "render:<ns>:" (artifacts) and "vflag:<ns>:" (validation flags)
// are owned by randselect. Foreign writes under these prefixes fail wire-format
// validation and are deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (<= 0 => no expiry). May ignore cost.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
