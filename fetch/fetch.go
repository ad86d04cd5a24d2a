// Package fetch reads remote data through a cache and degrades to a static
// fallback when the remote side fails.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Keksclan/rawrcart/breaker"
	"github.com/Keksclan/rawrcart/cache"
	"github.com/Keksclan/rawrcart/metrics"
	"github.com/Keksclan/rawrcart/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// ErrRemoteUnavailable wraps every remote failure. Fetch absorbs it; it only
// shows up in logs and spans.
var ErrRemoteUnavailable = errors.New("fetch: remote unavailable")

// Option configures a Fetcher.
type Option func(*settings)

type settings struct {
	breaker *breaker.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithBreaker guards the remote call with b. While b is open the remote is
// not called and the fallback is served.
func WithBreaker(b *breaker.Breaker) Option {
	return func(s *settings) { s.breaker = b }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics counts fetch results on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// Fetcher serves cached remote values.
type Fetcher[T any] struct {
	front *cache.Front[T]
	cfg   settings
}

// New returns a Fetcher reading through front.
func New[T any](front *cache.Front[T], opts ...Option) *Fetcher[T] {
	cfg := settings{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	return &Fetcher[T]{front: front, cfg: cfg}
}

// Fetch returns the value cached under key, or calls remote on a miss and
// caches its result for ttl. If remote fails in any way (error, panic, open
// circuit) fallback is returned tagged SourceFallback and nothing is
// cached. Fetch never fails.
func (f *Fetcher[T]) Fetch(ctx context.Context, key string, ttl time.Duration, remote func(context.Context) (T, error), fallback T) cache.Result[T] {
	ctx, span := tracing.Start(ctx, "fetch.Fetch", attribute.String("fetch.key", key))
	defer span.End()

	res, err := f.front.Get(ctx, key, ttl, f.guard(remote))
	if err != nil {
		res = cache.Result[T]{Value: fallback, Source: cache.SourceFallback}
		span.RecordError(err)
		f.cfg.logger.WarnContext(ctx, "remote fetch failed, serving fallback",
			slog.String("key", key), slog.Any("err", err))
	} else if res.Source == cache.SourceOrigin {
		res.Source = cache.SourceLive
	}

	span.SetAttributes(attribute.String("fetch.source", string(res.Source)))
	f.cfg.metrics.RemoteFetch(string(res.Source))
	return res
}

// guard wraps remote so that every failure, including a panic, comes back
// as an error wrapping ErrRemoteUnavailable.
func (f *Fetcher[T]) guard(remote func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: panic: %v", ErrRemoteUnavailable, r)
			}
		}()

		if f.cfg.breaker != nil {
			v, err = breaker.Do(ctx, f.cfg.breaker, remote)
		} else {
			v, err = remote(ctx)
		}
		if err != nil {
			var zero T
			return zero, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
		}
		return v, nil
	}
}
