// Package clock provides the time source and run id generator of the
// engine.
//
// Run ids are ULIDs stamped with the clock's time, so a fake clock gives
// tests predictable id prefixes. Ids never appear in a plan.
package clock

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Clock provides an abstraction for time operations to enable deterministic testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// FakeClock implements Clock with a fixed time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a new FakeClock with the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the fixed time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the fixed time forward by the given duration.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// RunIDs issues ULIDs that sort by issue order, including ids issued within
// the same millisecond.
type RunIDs struct {
	clock Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewRunIDs creates a generator stamping ids with c's time.
func NewRunIDs(c Clock) *RunIDs {
	if c == nil {
		c = &RealClock{}
	}
	return &RunIDs{clock: c, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new run id.
func (r *RunIDs) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(r.clock.Now()), r.entropy).String()
}
