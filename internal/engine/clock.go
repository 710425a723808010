package engine

import "sync/atomic"

// Clock is a monotonic logical clock stamping trace events. Sequence
// numbers order updates deterministically; wall-clock time is never
// recorded, so two runs of the same program produce identical traces.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
