// Package countdown presents a human countdown to an invoice expiry.
// The local clock is never authoritative; reaching zero only triggers
// a best-effort cancel and a resynchronizing reload upstream.
package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/my3rdstory/satoshop-sub001/internal/tracker"
)

// Timer ticks down to an absolute expiry at one-second granularity.
// onExpire fires exactly once, after the timer has stopped itself;
// Stop and expiry are mutually exclusive.
type Timer struct {
	clock clock.Clock
	tr    *tracker.Tracker

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New creates a timer on clk. A nil clock falls back to the wall clock.
func New(clk clock.Clock, tr *tracker.Tracker) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{clock: clk, tr: tr}
}

// Start begins the countdown to expiresAt. onTick receives the
// remaining duration immediately and then once per second, ending with
// a final zero. It reports false when a countdown is already running.
func (t *Timer) Start(ctx context.Context, expiresAt time.Time, onTick func(time.Duration), onExpire func()) bool {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return false
	}
	t.running = true
	t.stop = make(chan struct{})
	stop := t.stop
	t.mu.Unlock()

	if t.tr != nil {
		t.tr.CountdownStarted()
	}
	go t.loop(ctx, expiresAt, onTick, onExpire, stop)
	return true
}

func (t *Timer) loop(ctx context.Context, expiresAt time.Time, onTick func(time.Duration), onExpire func(), stop chan struct{}) {
	defer func() {
		if t.tr != nil {
			t.tr.CountdownStopped()
		}
	}()

	ticker := t.clock.Ticker(time.Second)
	defer ticker.Stop()

	onTick(remaining(expiresAt, t.clock.Now()))

	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			left := remaining(expiresAt, t.clock.Now())
			if left > 0 {
				onTick(left)
				continue
			}
			onTick(0)
			// claim the expiry before firing, so a concurrent Stop
			// cannot race a second terminal action
			if !t.claim() {
				return
			}
			onExpire()
			return
		}
	}
}

// claim transitions running->stopped and reports whether this caller
// won the transition.
func (t *Timer) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return false
	}
	t.running = false
	return true
}

// Stop halts the countdown without firing onExpire. Idempotent.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

// Active reports whether a countdown is currently running.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func remaining(expiresAt, now time.Time) time.Duration {
	left := expiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
