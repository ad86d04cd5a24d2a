// Package cache provides the byte stores behind rawrcart's read path and the
// cache-aside Front that sits on top of them.
//
// Stores: L1 is an in-process ristretto cache, L2 is Redis, Tiered chains the
// two. Every store honours TTLs on read: an expired entry is reported as a
// miss even if it has not been evicted yet.
package cache

import (
	"context"
	"time"
)

// Cache is the byte store contract used by Front.
type Cache interface {
	// Get retrieves a value by key. The boolean indicates a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores val under key for ttl. A zero TTL means the entry has no
	// automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
