package docstore

import (
	"sync"
	"time"
)

// clock hands out strictly increasing write timestamps so that a delta
// boundary taken from one write never matches a later one.
type clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newClock() *clock { return &clock{now: time.Now} }

// Next returns the wall time in unix nanoseconds, bumped past the previous
// value when the wall clock stalls or steps back.
func (c *clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UnixNano()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
