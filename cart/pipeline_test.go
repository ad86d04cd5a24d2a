package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Keksclan/rawrcart/contextx"
	"github.com/Keksclan/rawrcart/race"
)

func drain(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestAddItem_CompletesWithinDeadline(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(20 * time.Millisecond)))

	res, err := p.AddItem(t.Context(), "c1", 7, 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Cart.ID != "c1" {
		t.Fatalf("cart id = %q, want %q", res.Cart.ID, "c1")
	}
	if len(res.Cart.Items) != 1 || res.Cart.Items[0].ProductID != 7 || res.Cart.Items[0].Quantity != 2 {
		t.Fatalf("items = %+v, want [{7 2}]", res.Cart.Items)
	}
	if res.Cart.TotalQuantity != 2 {
		t.Fatalf("total = %d, want 2", res.Cart.TotalQuantity)
	}
	if res.Cart.Items[0].AddedAt.IsZero() {
		t.Fatal("addedAt not stamped")
	}
	if res.ProcessingTime < 20*time.Millisecond {
		t.Fatalf("processing time = %v, want >= 20ms", res.ProcessingTime)
	}
}

func TestAddItem_TimeoutStillAppliesWrite(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(60 * time.Millisecond)))

	_, err := p.AddItem(t.Context(), "c1", 7, 2, 10*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if !errors.Is(err, race.ErrTimedOut) {
		t.Fatal("ErrTimedOut should wrap race.ErrTimedOut")
	}

	// Not applied yet right after the timeout.
	if _, err := p.Get("c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cart to be absent right after the timeout, got %v", err)
	}

	drain(t, p)

	c, err := p.Get("c1")
	if err != nil {
		t.Fatalf("Get after drain: %v", err)
	}
	if got := c.Quantity(7); got != 2 {
		t.Fatalf("quantity = %d, want 2", got)
	}
	if c.TotalQuantity != 2 {
		t.Fatalf("total = %d, want 2", c.TotalQuantity)
	}
}

func TestAddItem_DeadlineBelowMinLatencyAlwaysTimesOut(t *testing.T) {
	p := NewPipeline(WithLatency(NewUniformLatency(40*time.Millisecond, 60*time.Millisecond, rand.NewSource(1))))
	for i := range 5 {
		if _, err := p.AddItem(t.Context(), "c", i, 1, 5*time.Millisecond); !errors.Is(err, ErrTimedOut) {
			t.Fatalf("call %d: expected ErrTimedOut, got %v", i, err)
		}
	}
	drain(t, p)

	c, _ := p.Get("c")
	if len(c.Items) != 5 {
		t.Fatalf("expected all 5 timed out writes to land, got %d items", len(c.Items))
	}
}

func TestAddItem_DeadlineAboveMaxLatencyAlwaysSucceeds(t *testing.T) {
	p := NewPipeline(WithLatency(NewUniformLatency(time.Millisecond, 5*time.Millisecond, rand.NewSource(1))))
	for i := range 5 {
		if _, err := p.AddItem(t.Context(), "c", 1, 1, time.Second); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	c, _ := p.Get("c")
	if c.Quantity(1) != 5 {
		t.Fatalf("quantity = %d, want 5", c.Quantity(1))
	}
}

// latencySeq hands out latencies in call order.
type latencySeq struct {
	mu  sync.Mutex
	seq []time.Duration
}

func (l *latencySeq) Sample() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.seq[0]
	l.seq = l.seq[1:]
	return d
}

func TestAddItem_ConcurrentSameProductMerges(t *testing.T) {
	// The first call is slower, so the second one's write lands first.
	p := NewPipeline(WithLatency(&latencySeq{seq: []time.Duration{40 * time.Millisecond, 5 * time.Millisecond}}))

	var wg sync.WaitGroup
	for _, q := range []int{3, 4} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.AddItem(context.Background(), "c1", 9, q, time.Second); err != nil {
				t.Errorf("AddItem(%d): %v", q, err)
			}
		}()
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	c, err := p.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("expected a single merged line, got %+v", c.Items)
	}
	if c.Quantity(9) != 7 {
		t.Fatalf("quantity = %d, want 7", c.Quantity(9))
	}
	if c.TotalQuantity != 7 {
		t.Fatalf("total = %d, want 7", c.TotalQuantity)
	}
}

func TestAddItem_NonPositiveQuantityAccepted(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(0)))

	if _, err := p.AddItem(t.Context(), "c1", 1, 5, time.Second); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	res, err := p.AddItem(t.Context(), "c1", 1, -2, time.Second)
	if err != nil {
		t.Fatalf("AddItem(-2): %v", err)
	}
	if res.Cart.Quantity(1) != 3 || res.Cart.TotalQuantity != 3 {
		t.Fatalf("got %+v, want quantity 3", res.Cart)
	}

	res, err = p.AddItem(t.Context(), "c1", 2, 0, time.Second)
	if err != nil {
		t.Fatalf("AddItem(0): %v", err)
	}
	if len(res.Cart.Items) != 2 || res.Cart.TotalQuantity != 3 {
		t.Fatalf("got %+v, want a zero-quantity second line", res.Cart)
	}
}

func TestAddItem_CallerCancelReturnsContextError(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(50 * time.Millisecond)))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := p.AddItem(ctx, "c1", 1, 1, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	drain(t, p)
	if c, _ := p.Get("c1"); c.Quantity(1) != 1 {
		t.Fatal("write abandoned by a cancelled caller was not applied")
	}
}

func TestGetMissingCart(t *testing.T) {
	p := NewPipeline()
	if _, err := p.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClear(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(0)))
	_, _ = p.AddItem(t.Context(), "c1", 1, 1, time.Second)

	p.Clear("c1")
	if _, err := p.Get("c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after Clear, got %v", err)
	}
	if n := p.Len(); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(0)))
	_, _ = p.AddItem(t.Context(), "c1", 1, 2, time.Second)
	_, _ = p.AddItem(t.Context(), "c1", 2, 3, time.Second)

	c, err := p.UpdateQuantity("c1", 1, 10)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if c.Quantity(1) != 10 || c.TotalQuantity != 13 {
		t.Fatalf("got %+v, want 10 + 3", c)
	}

	c, err = p.RemoveItem("c1", 2)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(c.Items) != 1 || c.TotalQuantity != 10 {
		t.Fatalf("got %+v, want only product 1", c)
	}

	c, err = p.UpdateQuantity("c1", 1, 0)
	if err != nil {
		t.Fatalf("UpdateQuantity(0): %v", err)
	}
	if len(c.Items) != 0 || c.TotalQuantity != 0 {
		t.Fatalf("got %+v, want an empty cart", c)
	}

	if _, err := p.RemoveItem("c1", 42); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if _, err := p.UpdateQuantity("ghost", 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUniformLatencyBounds(t *testing.T) {
	u := NewUniformLatency(DefaultMinLatency, DefaultMaxLatency, rand.NewSource(42))
	for range 1000 {
		d := u.Sample()
		if d < DefaultMinLatency || d >= DefaultMaxLatency {
			t.Fatalf("sample %v outside [%v, %v)", d, DefaultMinLatency, DefaultMaxLatency)
		}
	}

	degenerate := NewUniformLatency(time.Second, time.Second, nil)
	if d := degenerate.Sample(); d != time.Second {
		t.Fatalf("got %v, want 1s", d)
	}
}

func TestReturnedCartIsACopy(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(0)))
	res, _ := p.AddItem(t.Context(), "c1", 1, 1, time.Second)
	res.Cart.Items[0].Quantity = 100

	c, _ := p.Get("c1")
	if c.Quantity(1) != 1 {
		t.Fatalf("store mutated through a returned cart: %+v", c)
	}
}

// requestIDHandler records the request id found in the context of every
// record whose message matches msg.
type requestIDHandler struct {
	slog.Handler
	msg string
	mu  sync.Mutex
	ids []string
}

func (h *requestIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == h.msg {
		h.mu.Lock()
		h.ids = append(h.ids, contextx.RequestIDFromContext(ctx))
		h.mu.Unlock()
	}
	return nil
}

func (h *requestIDHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *requestIDHandler) WithGroup(string) slog.Handler { return h }

func TestAddItem_LateWriteLogKeepsRequestContext(t *testing.T) {
	h := &requestIDHandler{Handler: slog.NewTextHandler(io.Discard, nil), msg: "late write applied after caller timed out"}
	p := NewPipeline(WithLatency(FixedLatency(40*time.Millisecond)), WithLogger(slog.New(h)))

	ctx := contextx.WithRequestID(t.Context(), "req-late-1")
	if _, err := p.AddItem(ctx, "c1", 1, 1, 5*time.Millisecond); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	drain(t, p)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.ids) != 1 || h.ids[0] != "req-late-1" {
		t.Fatalf("late write logged with request ids %v, want [req-late-1]", h.ids)
	}
}

func TestDrain_StopsWaitingWhenContextEnds(t *testing.T) {
	p := NewPipeline(WithLatency(FixedLatency(200 * time.Millisecond)))
	if _, err := p.AddItem(t.Context(), "c1", 1, 1, time.Millisecond); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	if err := p.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while a write is in flight, got %v", err)
	}

	drain(t, p)
	if c, _ := p.Get("c1"); c.Quantity(1) != 1 {
		t.Fatal("in-flight write lost after an interrupted Drain")
	}
}
