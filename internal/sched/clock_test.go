package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameClock(t *testing.T) {
	t.Run("monotonic", func(t *testing.T) {
		c := NewFrameClock()
		a := c.Now()
		time.Sleep(time.Millisecond)
		assert.Greater(t, c.Now(), a)
	})

	t.Run("dilation slows time and keeps it continuous", func(t *testing.T) {
		c := NewFrameClock()
		time.Sleep(2 * time.Millisecond)
		before := c.Now()
		c.SetTimeDilation(1000)
		after := c.Now()
		assert.GreaterOrEqual(t, after, before)

		time.Sleep(5 * time.Millisecond)
		// 5ms of wall time is 5us of dilated time
		assert.Less(t, c.Now()-after, time.Millisecond)
		assert.Equal(t, 1000.0, c.TimeDilation())
	})

	t.Run("non-positive dilation panics", func(t *testing.T) {
		assert.Panics(t, func() { NewFrameClock().SetTimeDilation(0) })
	})

	t.Run("reset epoch", func(t *testing.T) {
		c := NewFrameClock()
		time.Sleep(2 * time.Millisecond)
		c.ResetEpoch()
		assert.Less(t, c.Now(), 2*time.Millisecond)
	})
}

func TestTickClock(t *testing.T) {
	c := NewTickClock(1)
	c.Start(time.Millisecond)

	<-c.Ch
	assert.Eventually(t, func() bool { return c.Count() >= 3 }, time.Second, time.Millisecond)
	// nobody reads, so ticks are dropped instead of blocking the clock
	assert.Eventually(t, func() bool { return c.Dropped() > 0 }, time.Second, time.Millisecond)

	c.Stop()
	for range c.Ch {
	}
	c.Stop()
}
