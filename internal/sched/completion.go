// internal/sched/completion.go

package sched

import (
	"context"
	"sync"

	"framesched/internal/frame"
)

// FrameCompletion resolves once, after the post-frame callbacks of the frame
// it is waiting for.
type FrameCompletion struct {
	done   chan struct{}
	once   sync.Once
	timing frame.Timing
}

func newFrameCompletion() *FrameCompletion {
	return &FrameCompletion{done: make(chan struct{})}
}

func (c *FrameCompletion) resolve(t frame.Timing) {
	c.once.Do(func() {
		c.timing = t
		close(c.done)
	})
}

// Done is closed when the frame has completed.
func (c *FrameCompletion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the frame completes or ctx is done.
func (c *FrameCompletion) Wait(ctx context.Context) (frame.Timing, error) {
	select {
	case <-c.done:
		return c.timing, nil
	case <-ctx.Done():
		return frame.Timing{}, ctx.Err()
	}
}

// Timing returns the completed frame's timing, and false while still pending.
func (c *FrameCompletion) Timing() (frame.Timing, bool) {
	select {
	case <-c.done:
		return c.timing, true
	default:
		return frame.Timing{}, false
	}
}
