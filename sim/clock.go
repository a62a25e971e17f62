package sim

import (
	"sync"
	"time"
)

// ManualClock is a deterministic clock. Every NowMicros call advances it by Tick,
// so busy-wait loops make progress without real time passing.
type ManualClock struct {
	Tick uint32
	// OnRead is called with the current time before every NowMicros result is returned.
	OnRead func(micros uint64)

	lock   sync.Mutex
	micros uint64
}

func NewManualClock(tick uint32) *ManualClock {
	return &ManualClock{Tick: tick}
}

func (c *ManualClock) NowMicros() uint32 {
	c.lock.Lock()
	c.micros += uint64(c.Tick)
	now := c.micros
	hook := c.OnRead
	c.lock.Unlock()
	if hook != nil {
		hook(now)
	}
	return uint32(now)
}

// NowMillis does not advance the clock.
func (c *ManualClock) NowMillis() uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return uint32(c.micros / 1000)
}

func (c *ManualClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.micros += uint64(d.Microseconds())
}

// Set moves the clock to an absolute time, which may be used to test wraparound.
func (c *ManualClock) Set(micros uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.micros = micros
}

func (c *ManualClock) Micros() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.micros
}
