// Package reserve provides the bounded inventory hold pool backing the
// gateway's reservation step.
package reserve

import "context"

// Pool limits concurrent inventory holds. Every hold is either released
// (expiry, cancellation) or consumed (order completion); a slot never
// dangles.
type Pool struct {
	sem chan struct{}
}

// New creates a pool with at least one slot and at most 128 slots.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	if size > 128 {
		size = 128
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// TryAcquire takes one hold without blocking. It reports false when the
// stock is exhausted, which the gateway maps to inventory_unavailable.
func (p *Pool) TryAcquire() bool {
	select {
	case p.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Acquire blocks for a hold until one frees up or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired hold.
func (p *Pool) Release() {
	<-p.sem
}

// Held returns the number of live holds.
func (p *Pool) Held() int {
	return len(p.sem)
}
