package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Keksclan/rawrcart/internal/clock"
)

// manualClock only serves Now; the breaker never schedules timers.
type manualClock struct{ now *time.Time }

func (m manualClock) Now() time.Time                     { return *m.now }
func (m manualClock) NewTimer(time.Duration) clock.Timer { panic("not used") }

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	now := time.Now()
	b := NewWithClock(cfg, manualClock{now: &now})
	return b, &now
}

func TestClosedToOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{
		FailureThreshold:   3,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 1,
	})

	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %s", s)
	}

	b.OnFailure()
	b.OnFailure()
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed after 2 failures, got %s", s)
	}

	b.OnFailure() // 3rd failure => trip
	if s := b.State(); s != Open {
		t.Fatalf("expected Open after 3 failures, got %s", s)
	}
}

func TestOpenBlocks(t *testing.T) {
	b, _ := newTestBreaker(Config{
		FailureThreshold:   1,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 1,
	})

	b.OnFailure() // trip
	if b.Allow() {
		t.Fatal("expected Allow()=false in Open state")
	}
}

func TestOpenToHalfOpenAfterTimeout(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold:   1,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 2,
	})

	b.OnFailure() // trip to Open
	if b.Allow() {
		t.Fatal("expected blocked in Open")
	}

	// Advance time past OpenTimeout
	*now = now.Add(6 * time.Second)

	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected HalfOpen after timeout, got %s", s)
	}
	if !b.Allow() {
		t.Fatal("expected Allow()=true in HalfOpen")
	}
}

func TestHalfOpenSuccessToClosed(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold:   1,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 2,
	})

	b.OnFailure()
	*now = now.Add(6 * time.Second)

	// Now in HalfOpen
	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected HalfOpen, got %s", s)
	}

	b.OnSuccess()
	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected still HalfOpen after 1 success, got %s", s)
	}

	b.OnSuccess() // 2nd success => close
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed after %d successes, got %s", 2, s)
	}
}

func TestHalfOpenFailureToOpen(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold:   1,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 3,
	})

	b.OnFailure()
	*now = now.Add(6 * time.Second)

	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected HalfOpen, got %s", s)
	}

	b.OnFailure() // any failure in HalfOpen => Open
	if s := b.State(); s != Open {
		t.Fatalf("expected Open after HalfOpen failure, got %s", s)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{
		FailureThreshold:   3,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 1,
	})

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess() // resets count
	b.OnFailure()
	b.OnFailure()
	// Only 2 consecutive failures after reset, should still be Closed
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %s", s)
	}
}

func TestHalfOpenProbeLimit(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold:   1,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 2,
	})

	b.OnFailure()
	*now = now.Add(6 * time.Second)

	// HalfOpen allows up to HalfOpenMaxSuccess probes
	if !b.Allow() {
		t.Fatal("expected first probe allowed")
	}
	b.OnSuccess() // successes=1

	if !b.Allow() {
		t.Fatal("expected second probe allowed")
	}
	// After HalfOpenMaxSuccess successes recorded, further Allow should
	// still work because we haven't called OnSuccess yet for the second probe.
	// But once we do:
	b.OnSuccess() // successes=2 => transitions to Closed

	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %s", s)
	}
}

func TestDo_OpenRejectsWithoutCalling(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2, OpenTimeout: time.Minute})
	boom := errors.New("boom")
	calls := 0
	fail := func(context.Context) (int, error) {
		calls++
		return 0, boom
	}

	for range 2 {
		if _, err := Do(t.Context(), b, fail); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}
	if _, err := Do(t.Context(), b, fail); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_CallerCancelIsNotAFailure(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Minute})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Do(ctx, b, func(ctx context.Context) (int, error) { return 0, ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %s", s)
	}
}

func TestOnStateChange(t *testing.T) {
	var seen []string
	b, now := newTestBreaker(Config{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		OnStateChange:    func(from, to State) { seen = append(seen, from.String()+">"+to.String()) },
	})

	b.OnFailure()
	*now = now.Add(2 * time.Second)
	_ = b.State()
	b.OnSuccess()

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	b := New(Config{})
	for range 4 {
		b.OnFailure()
	}
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed after 4 failures, got %s", s)
	}
	b.OnFailure()
	if s := b.State(); s != Open {
		t.Fatalf("expected Open after 5 failures, got %s", s)
	}
}
