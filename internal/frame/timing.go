// internal/frame/timing.go

package frame

import "time"

// Timing is handed to every frame callback.
type Timing struct {
	Frame     uint64        // 1-based frame number
	Timestamp time.Duration // time since the scheduler epoch, dilated
	Phase     Phase         // phase the callback runs in
	Start     time.Time     // wall clock at frame start, carries the monotonic reading
}

// Elapsed returns the wall time since the frame started.
func (t Timing) Elapsed() time.Duration {
	if t.Start.IsZero() {
		return 0
	}
	return time.Since(t.Start)
}

// WithPhase returns a copy of t tagged with p.
func (t Timing) WithPhase(p Phase) Timing {
	t.Phase = p
	return t
}
