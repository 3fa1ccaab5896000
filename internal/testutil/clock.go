package testutil

import (
	"sync"
	"time"
)

// FixedClock is a manually advanced wall clock for date arithmetic in
// tests (maintenance windows, report timestamps).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// NewFixedClockAt parses an ISO date (2006-01-02) as midnight UTC.
// Panics on a malformed date; test input is static.
func NewFixedClockAt(date string) *FixedClock {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return NewFixedClock(t)
}

// Now returns the frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceDays moves the clock forward by whole days.
func (c *FixedClock) AdvanceDays(days int) {
	c.Advance(time.Duration(days) * 24 * time.Hour)
}
