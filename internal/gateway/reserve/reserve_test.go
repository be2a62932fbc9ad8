package reserve

import (
	"context"
	"testing"
	"time"
)

func TestTryAcquireUntilExhausted(t *testing.T) {
	t.Parallel()

	p := New(2)

	if !p.TryAcquire() || !p.TryAcquire() {
		t.Fatal("expected two holds to succeed")
	}
	if p.TryAcquire() {
		t.Fatal("expected third hold to fail")
	}
	if got := p.Held(); got != 2 {
		t.Fatalf("expected 2 held, got %d", got)
	}

	p.Release()
	if !p.TryAcquire() {
		t.Fatal("expected hold to succeed after release")
	}
}

func TestSizeClamped(t *testing.T) {
	t.Parallel()

	p := New(0)
	if !p.TryAcquire() {
		t.Fatal("expected one slot for non-positive size")
	}
	if p.TryAcquire() {
		t.Fatal("expected exactly one slot")
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	t.Parallel()

	p := New(1)
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Acquire(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
