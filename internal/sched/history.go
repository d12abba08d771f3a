// internal/sched/history.go

package sched

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

// DefaultHistorySize is how many recent frame durations are kept.
const DefaultHistorySize = 120

// frameHistory keeps the most recent frame durations; the oldest entry is
// overwritten once full.
type frameHistory struct {
	mu     sync.Mutex // protects ring
	ring   *circularbuffer.Queue
	janky  uint64 // lifetime count
	frames uint64 // lifetime count
}

func newFrameHistory(size int) *frameHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &frameHistory{ring: circularbuffer.New(size)}
}

func (h *frameHistory) record(elapsed time.Duration, janky bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring.Enqueue(elapsed)
	h.frames++
	if janky {
		h.janky++
	}
}

// stats returns the average of the window and how many entries in it exceed target.
func (h *frameHistory) stats(target time.Duration) (avg time.Duration, janky, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var total time.Duration
	for _, v := range h.ring.Values() {
		d := v.(time.Duration)
		total += d
		if d > target {
			janky++
		}
	}
	n = h.ring.Size()
	if n > 0 {
		avg = total / time.Duration(n)
	}
	return avg, janky, n
}

func (h *frameHistory) lifetime() (frames, janky uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames, h.janky
}

func (h *frameHistory) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring.Clear()
	h.frames, h.janky = 0, 0
}
