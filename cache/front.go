package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Keksclan/rawrcart/metrics"
)

// Source tags where a value handed to the caller came from.
type Source string

const (
	// SourceCache: served from an unexpired cache entry.
	SourceCache Source = "cache"
	// SourceOrigin: loaded from the source function on a miss.
	SourceOrigin Source = "source"
	// SourceLive: loaded from a remote call (see package fetch).
	SourceLive Source = "live"
	// SourceFallback: the remote call failed and a fallback value was used.
	SourceFallback Source = "fallback"
)

// Result is a value tagged with its provenance.
type Result[T any] struct {
	Value  T      `json:"data"`
	Source Source `json:"source"`
}

// FrontOption configures a Front.
type FrontOption func(*frontConfig)

type frontConfig struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithName labels the Front in logs and metrics.
func WithName(name string) FrontOption {
	return func(c *frontConfig) { c.name = name }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) FrontOption {
	return func(c *frontConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records lookups on m.
func WithMetrics(m *metrics.Metrics) FrontOption {
	return func(c *frontConfig) { c.metrics = m }
}

// Front is a cache-aside reader over a Cache. Values are stored JSON-encoded.
//
// Front has no stampede protection: concurrent misses on the same key each
// call the source and each write the cache, and the last write wins. This is
// accepted; callers that need a single in-flight load per key must add it
// themselves.
type Front[T any] struct {
	store Cache
	cfg   frontConfig
}

// NewFront returns a Front reading through store.
func NewFront[T any](store Cache, opts ...FrontOption) *Front[T] {
	cfg := frontConfig{name: "default", logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	return &Front[T]{store: store, cfg: cfg}
}

// Get returns the value cached under key while it is unexpired. Otherwise it
// calls source, caches the result for ttl and returns it. A source error is
// returned as is and nothing is cached.
//
// Store failures never fail the read: a failing Get is treated as a miss and
// a failing Set is logged.
func (f *Front[T]) Get(ctx context.Context, key string, ttl time.Duration, source func(context.Context) (T, error)) (Result[T], error) {
	if v, ok := f.lookup(ctx, key); ok {
		f.cfg.metrics.CacheLookup(f.cfg.name, string(SourceCache))
		f.cfg.logger.DebugContext(ctx, "cache hit", slog.String("cache", f.cfg.name), slog.String("key", key))
		return Result[T]{Value: v, Source: SourceCache}, nil
	}

	f.cfg.logger.DebugContext(ctx, "cache miss", slog.String("cache", f.cfg.name), slog.String("key", key))
	v, err := source(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	f.cfg.metrics.CacheLookup(f.cfg.name, string(SourceOrigin))

	if raw, err := json.Marshal(v); err != nil {
		f.cfg.logger.WarnContext(ctx, "cache encode failed", slog.String("key", key), slog.Any("err", err))
	} else if err := f.store.Set(ctx, key, raw, ttl); err != nil {
		f.cfg.logger.WarnContext(ctx, "cache set failed", slog.String("key", key), slog.Any("err", err))
	}
	return Result[T]{Value: v, Source: SourceOrigin}, nil
}

// Invalidate removes key from the underlying store.
func (f *Front[T]) Invalidate(ctx context.Context, key string) error {
	return f.store.Delete(ctx, key)
}

func (f *Front[T]) lookup(ctx context.Context, key string) (T, bool) {
	var v T
	raw, ok, err := f.store.Get(ctx, key)
	if err != nil {
		f.cfg.logger.WarnContext(ctx, "cache get failed", slog.String("key", key), slog.Any("err", err))
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		// Undecodable bytes (older format, foreign writer) count as a miss
		// and get overwritten by the reload.
		f.cfg.logger.WarnContext(ctx, "cache decode failed", slog.String("key", key), slog.Any("err", err))
		var zero T
		return zero, false
	}
	return v, true
}
