// Package genstore tracks one generation counter per page for the render cache.
//
// An edit or purge bumps the page generation; every cached artifact written
// under an older generation (any parser-options variant) becomes stale and is
// deleted on its next read.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local for a single process, Redis when several replicas share a render cache.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, pageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, pageKey string) (uint64, error)
	// Cleanup prunes entries not bumped within retention (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
