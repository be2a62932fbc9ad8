// Package tracker provides lightweight counters for live background
// activity (poll schedules and countdowns).
package tracker

import "sync/atomic"

// Tracker counts live background tasks using atomics. Tests use it to
// prove no schedule or timer outlives its transaction.
type Tracker struct {
	schedules  atomic.Int64
	countdowns atomic.Int64
}

// ScheduleStarted increments the live schedule counter.
func (t *Tracker) ScheduleStarted() { t.schedules.Add(1) }

// ScheduleStopped decrements the live schedule counter.
func (t *Tracker) ScheduleStopped() { t.schedules.Add(-1) }

// Schedules returns the current live schedule count.
func (t *Tracker) Schedules() int64 { return t.schedules.Load() }

// CountdownStarted increments the live countdown counter.
func (t *Tracker) CountdownStarted() { t.countdowns.Add(1) }

// CountdownStopped decrements the live countdown counter.
func (t *Tracker) CountdownStopped() { t.countdowns.Add(-1) }

// Countdowns returns the current live countdown count.
func (t *Tracker) Countdowns() int64 { return t.countdowns.Load() }
