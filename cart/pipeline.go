package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Keksclan/rawrcart/internal/clock"
	"github.com/Keksclan/rawrcart/metrics"
	"github.com/Keksclan/rawrcart/race"
	"github.com/Keksclan/rawrcart/store"
	"github.com/Keksclan/rawrcart/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// AddResult is the successful outcome of AddItem.
type AddResult struct {
	Success        bool          `json:"success"`
	Cart           Cart          `json:"cart"`
	ProcessingTime time.Duration `json:"-"`
}

// Pipeline owns the cart store and serves all cart operations.
type Pipeline struct {
	carts   *store.Store[string, Cart]
	latency LatencySource
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	inflight sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLatency replaces the default 2s-4s uniform processing latency.
func WithLatency(l LatencySource) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.latency = l
		}
	}
}

// WithClock sets the clock driving the simulated latency and the deadline.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records write outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a Pipeline with an empty cart store.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		carts:   store.New(New, Cart.Clone),
		latency: NewUniformLatency(DefaultMinLatency, DefaultMaxLatency, nil),
		clock:   clock.Real(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AddItem adds quantity of productID to cartID, creating the cart if needed,
// and waits at most deadline for the write to finish.
//
// On timeout AddItem returns ErrTimedOut right away, but the write is not
// abandoned: it finishes in the background and later reads observe it. The
// timeout limits how long the caller waits, not whether the write happens.
//
// Writes to one cart are applied in the order their processing finishes,
// which need not match the order AddItem was called in.
func (p *Pipeline) AddItem(ctx context.Context, cartID string, productID, quantity int, deadline time.Duration) (AddResult, error) {
	ctx, span := tracing.Start(ctx, "cart.AddItem",
		attribute.String("cart.id", cartID),
		attribute.Int("cart.product_id", productID),
		attribute.Int("cart.quantity", quantity),
	)

	latency := p.latency.Sample()
	log := p.logger.With(slog.String("cart", cartID), slog.Int("product", productID))
	log.InfoContext(ctx, "adding item", slog.Int("quantity", quantity), slog.Duration("latency", latency))

	p.inflight.Add(1)
	work := func(context.Context) (AddResult, error) {
		defer p.inflight.Done()

		start := p.clock.Now()
		t := p.clock.NewTimer(latency)
		<-t.C()

		c := p.carts.Upsert(cartID, func(c Cart) Cart {
			return c.addOrMerge(productID, quantity, p.clock.Now())
		})
		return AddResult{Success: true, Cart: c, ProcessingTime: clock.Since(p.clock, start)}, nil
	}

	out := race.Run(ctx, deadline, work,
		race.WithClock(p.clock),
		race.OnLate(func(_ error, elapsed time.Duration) {
			p.metrics.CartAdd(metrics.OutcomeLate, elapsed)
			log.WarnContext(ctx, "late write applied after caller timed out", slog.Duration("elapsed", elapsed))
		}),
	)

	if out.TimedOut {
		p.metrics.CartAdd(metrics.OutcomeTimedOut, 0)
		err := out.Err
		if errors.Is(err, race.ErrTimedOut) {
			err = ErrTimedOut
		}
		log.WarnContext(ctx, "add item timed out", slog.Duration("deadline", deadline), slog.Any("err", err))
		tracing.End(span, err)
		return AddResult{}, err
	}

	p.metrics.CartAdd(metrics.OutcomeCompleted, out.Value.ProcessingTime)
	log.InfoContext(ctx, "item added",
		slog.Duration("processing", out.Value.ProcessingTime),
		slog.Int("total", out.Value.Cart.TotalQuantity),
	)
	tracing.End(span, out.Err)
	return out.Value, out.Err
}

// Get returns the cart stored under cartID, or ErrNotFound.
func (p *Pipeline) Get(cartID string) (Cart, error) {
	c, ok := p.carts.Get(cartID)
	if !ok {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

// Clear deletes the cart. Writes still in flight for it recreate it.
func (p *Pipeline) Clear(cartID string) {
	p.carts.Delete(cartID)
	p.logger.Info("cart cleared", slog.String("cart", cartID))
}

// UpdateQuantity sets the quantity of an existing line; quantity <= 0
// removes it.
func (p *Pipeline) UpdateQuantity(cartID string, productID, quantity int) (Cart, error) {
	c, err := p.carts.Update(cartID, func(c Cart) (Cart, error) {
		return c.setQuantity(productID, quantity)
	})
	if errors.Is(err, store.ErrNotFound) {
		return Cart{}, ErrNotFound
	}
	return c, err
}

// RemoveItem removes the line for productID.
func (p *Pipeline) RemoveItem(cartID string, productID int) (Cart, error) {
	return p.UpdateQuantity(cartID, productID, 0)
}

// Len returns the number of stored carts.
func (p *Pipeline) Len() int {
	return p.carts.Len()
}

// Drain waits until every write started by AddItem, including those whose
// callers timed out, has been applied, or until ctx is done.
//
// Drain must only be called once no new AddItem calls can start, e.g. after
// the gRPC server has been stopped: an AddItem racing Drain violates the
// sync.WaitGroup contract.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
