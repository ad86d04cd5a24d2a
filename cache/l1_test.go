package cache

import (
	"testing"
	"time"
)

func mustNewL1(t *testing.T) *L1 {
	t.Helper()
	c, err := NewL1(1000)
	if err != nil {
		t.Fatalf("NewL1: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestL1_GetSet(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	// Miss returns false.
	_, ok, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}

	// Set then Get.
	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	val, ok, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if string(val) != "v1" {
		t.Fatalf("got %q, want %q", val, "v1")
	}
}

func TestL1_Delete(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after Delete")
	}
	// Deleting again is fine.
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete error: %v", err)
	}
}

func TestL1_ReturnsCopies(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	src := []byte("abc")
	_ = c.Set(ctx, "k", src, 0)
	src[0] = 'X'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
	got[1] = 'Y'
	again, _, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("cached value mutated through returned slice: %q", again)
	}
}

func TestL1_TTLExpires(t *testing.T) {
	c := mustNewL1(t)
	ctx := t.Context()

	if err := c.Set(ctx, "ttl", []byte("temp"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	// Should be present immediately.
	_, ok, _ := c.Get(ctx, "ttl")
	if !ok {
		t.Fatal("expected hit before TTL")
	}

	// Wait for expiration. Ristretto cleanup may need a bit of extra time.
	time.Sleep(200 * time.Millisecond)

	_, ok, _ = c.Get(ctx, "ttl")
	if ok {
		t.Fatal("expected miss after TTL")
	}
}
