package cache

import (
	"context"
	"errors"
	"time"
)

// Tiered combines an L1 (in-process) and L2 (Redis) cache. Reads check L1
// first, then L2; writes and deletes go to both.
type Tiered struct {
	l1 *L1
	l2 *L2
}

// NewTiered creates a two-level cache.
func NewTiered(l1 *L1, l2 *L2) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Get checks L1, then L2. An L2 hit is promoted into L1 with the TTL Redis
// still has left on the key, so the copy never outlives the original.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ttl, ok := t.l2.getWithTTL(ctx, key)
	if !ok {
		return nil, false, nil
	}
	_ = t.l1.Set(ctx, key, v, ttl)
	return v, true, nil
}

// Set writes the value to L2, then L1.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = t.l2.Set(ctx, key, val, ttl)
	return t.l1.Set(ctx, key, val, ttl)
}

// Delete removes key from both layers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	return errors.Join(t.l2.Delete(ctx, key), t.l1.Delete(ctx, key))
}
