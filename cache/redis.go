package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// L2 is a Redis-backed cache layer. Reads and writes fail soft: an
// unreachable Redis looks like a miss and writes are dropped, so the read
// path keeps working from L1 and the source.
type L2 struct {
	rdb *redis.Client
}

// RedisOptions configures NewL2.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// NewL2 creates a Redis-backed L2 cache. It does not dial; use Ping to check
// connectivity.
func NewL2(opts RedisOptions) *L2 {
	return &L2{rdb: redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

// Get retrieves a value by key.
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, _, ok := l.getWithTTL(ctx, key)
	return val, ok, nil
}

// getWithTTL returns the value together with its remaining TTL (0 when the
// key never expires), reading both in one round trip.
func (l *L2) getWithTTL(ctx context.Context, key string) ([]byte, time.Duration, bool) {
	pipe := l.rdb.Pipeline()
	get := pipe.Get(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		// redis.Nil is a plain miss; anything else is an outage and is
		// treated the same way.
		return nil, 0, false
	}
	val, err := get.Bytes()
	if err != nil {
		return nil, 0, false
	}
	ttl := pttl.Val()
	if ttl < 0 {
		// -1: no expiry. -2 would mean the key vanished between commands,
		// which the GET above already rules out.
		ttl = 0
	}
	return val, ttl, true
}

// Set stores val under key for ttl. Errors are dropped (fail soft).
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	_ = l.rdb.Set(ctx, key, val, ttl).Err()
	return nil
}

// Delete removes key. Unlike writes, a failed delete is reported: a stale
// entry surviving an invalidation is worth knowing about.
func (l *L2) Delete(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}
