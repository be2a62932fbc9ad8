// Package poll provides the periodic verify schedule for an active
// payment transaction.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/my3rdstory/satoshop-sub001/internal/tracker"
)

// Scheduler invokes a tick function at a fixed interval. Exactly one
// schedule runs at a time; the tick owner is responsible for re-checking
// terminal state, a tick firing just after completion must be a no-op
// on its side.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	tr       *tracker.Tracker

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wake    chan struct{}
}

// New creates a scheduler ticking on clk at the given interval.
// A nil clock falls back to the wall clock; a non-positive interval
// falls back to 2s.
func New(clk clock.Clock, interval time.Duration, tr *tracker.Tracker) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Scheduler{clock: clk, interval: interval, tr: tr}
}

// Start launches the schedule. It reports false, without side effects,
// when a schedule is already running.
func (s *Scheduler) Start(ctx context.Context, tick func(context.Context)) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wake = make(chan struct{}, 1)
	stop, wake := s.stop, s.wake
	s.mu.Unlock()

	if s.tr != nil {
		s.tr.ScheduleStarted()
	}
	go s.loop(ctx, tick, stop, wake)
	return true
}

func (s *Scheduler) loop(ctx context.Context, tick func(context.Context), stop, wake chan struct{}) {
	defer func() {
		if s.tr != nil {
			s.tr.ScheduleStopped()
		}
	}()

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-stop:
			return
		case <-wake:
			if stopped(stop) {
				return
			}
			tick(ctx)
		case <-ticker.C:
			if stopped(stop) {
				return
			}
			tick(ctx)
		}
	}
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Poke requests an immediate out-of-band tick, used when the page
// regains foreground so a payment completed in an external wallet is
// not missed. No-op when nothing is scheduled.
func (s *Scheduler) Poke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop tears the schedule down. Idempotent; safe to call from within a
// tick. An in-flight tick cannot be aborted; its eventual result is the
// tick owner's problem (guarded there by transaction id comparison).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
}

// Active reports whether a schedule is currently running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
