// Package period implements a counter whose rate is sampled once per period.
package period

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tutils/rxnet/counter"
)

var _ counter.Counter = &periodCounter{}

type periodCounter struct {
	value      atomic.Int64
	ratePerSec atomic.Int64
	period     time.Duration
	now        func() time.Time

	mu        sync.Mutex
	lastValue int64
	lastTime  time.Time
}

// NewPeriodCounter returns a Counter whose rate is recomputed on the
// first Add after each period has elapsed.
func NewPeriodCounter(period time.Duration) counter.Counter {
	return newPeriodCounter(period, time.Now)
}

func newPeriodCounter(period time.Duration, now func() time.Time) *periodCounter {
	return &periodCounter{
		period:   period,
		now:      now,
		lastTime: now(),
	}
}

// Value implements Counter.
func (c *periodCounter) Value() int64 {
	return c.value.Load()
}

// RatePerSec implements Counter.
func (c *periodCounter) RatePerSec() int64 {
	return c.ratePerSec.Load()
}

// Add implements Counter.
func (c *periodCounter) Add(n int64) {
	c.value.Add(n)
	c.check()
}

func (c *periodCounter) check() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	elapsed := now.Sub(c.lastTime)
	if elapsed < c.period {
		return
	}

	value := c.Value()
	c.ratePerSec.Store(int64(float64(value-c.lastValue) / elapsed.Seconds()))
	c.lastValue = value
	c.lastTime = now
}
