package engine

import (
	"sync"
	"time"
)

// Clock supplies the engine's timestamps. All persisted timestamps flow
// through one clock so tests can pin them.
type Clock interface {
	Now() time.Time
}

// WallClock reads the system clock.
type WallClock struct{}

// Now returns the current time.
func (WallClock) Now() time.Time { return time.Now() }

// FixedClock returns a pinned time, advancing by a fixed step on every
// read so ordered events keep distinct timestamps.
//
// Thread-safety: FixedClock is safe for concurrent use via internal mutex.
type FixedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFixedClock creates a clock pinned at start, advancing one microsecond
// per read.
func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{now: start, step: time.Microsecond}
}

// Now returns the pinned time and advances it by one step.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
