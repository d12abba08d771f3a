// internal/sched/clock.go

package sched

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FrameClock gives every frame a timestamp on one shared time base.
//
// Timestamps are measured from the epoch and divided by the time dilation, so
// a dilation of 2 makes animations run at half speed.
type FrameClock struct {
	mu       sync.Mutex // protects everything below
	epoch    time.Time
	base     time.Duration // dilated time carried over from before the last epoch move
	dilation float64

	frames atomic.Uint64
}

// NewFrameClock starts a clock at zero with no dilation.
func NewFrameClock() *FrameClock {
	return &FrameClock{epoch: time.Now(), dilation: 1}
}

// Now returns the dilated time since the epoch.
func (c *FrameClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *FrameClock) nowLocked() time.Duration {
	return c.base + time.Duration(float64(time.Since(c.epoch))/c.dilation)
}

// Epoch returns the wall time timestamps are measured from.
func (c *FrameClock) Epoch() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// ResetEpoch restarts timestamps at zero.
func (c *FrameClock) ResetEpoch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = time.Now()
	c.base = 0
}

// FrameCount returns how many frames have begun on this clock.
func (c *FrameClock) FrameCount() uint64 {
	return c.frames.Load()
}

// beginFrame numbers a new frame.
func (c *FrameClock) beginFrame() uint64 {
	return c.frames.Add(1)
}

// TimeDilation returns the current slow-down factor.
func (c *FrameClock) TimeDilation() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dilation
}

// SetTimeDilation changes the slow-down factor. Timestamps stay continuous
// across the change. It panics on non-positive values.
func (c *FrameClock) SetTimeDilation(f float64) {
	if f <= 0 {
		panic(fmt.Sprintf("sched: time dilation must be positive, got %v", f))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = c.nowLocked()
	c.epoch = time.Now()
	c.dilation = f
}
