// internal/frame/budget.go

package frame

import (
	"sync/atomic"
	"time"
)

// Budget tracks how much of the current frame's time allowance each phase has used.
//
// Every field is an atomic so the frame goroutine can record phases while other
// goroutines (task strategies, background producers) query IsOverBudget.
type Budget struct {
	target atomic.Int64 // nanoseconds
	epoch  time.Time

	elapsed [numPhases]atomic.Int64 // closed phase time, nanoseconds
	started [numPhases]atomic.Int64 // open phase start since epoch +1, 0 when closed
}

// PhaseStats is a point-in-time copy of a Budget.
type PhaseStats struct {
	Target     time.Duration
	Elapsed    [numPhases]time.Duration
	Total      time.Duration
	OverBudget bool
}

// Of returns the elapsed time recorded for p.
func (s PhaseStats) Of(p Phase) time.Duration {
	if !p.Valid() {
		return 0
	}
	return s.Elapsed[p]
}

// NewBudget creates a tracker for the given frame rate.
func NewBudget(targetFPS int) *Budget {
	b := &Budget{epoch: time.Now()}
	b.target.Store(int64(FrameDurationFromFPS(targetFPS)))
	return b
}

// Target returns the per-frame allowance.
func (b *Budget) Target() time.Duration {
	return time.Duration(b.target.Load())
}

// SetTargetFPS changes the allowance for subsequent checks.
func (b *Budget) SetTargetFPS(fps int) {
	b.target.Store(int64(FrameDurationFromFPS(fps)))
}

// Reset clears all phase counters. Called at the start of every frame.
func (b *Budget) Reset() {
	for i := range b.elapsed {
		b.elapsed[i].Store(0)
		b.started[i].Store(0)
	}
}

// BeginPhase opens p. Beginning an already open phase restarts its clock.
func (b *Budget) BeginPhase(p Phase) {
	if !p.Valid() {
		return
	}
	b.started[p].Store(b.since() + 1)
}

// EndPhase closes p and adds its duration. Ending a phase that was never begun is a no-op.
func (b *Budget) EndPhase(p Phase) {
	if !p.Valid() {
		return
	}
	start := b.started[p].Swap(0)
	if start == 0 {
		return
	}
	if d := b.since() - (start - 1); d > 0 {
		b.elapsed[p].Add(d)
	}
}

// Record adds an externally measured duration to p.
func (b *Budget) Record(p Phase, d time.Duration) {
	if !p.Valid() || d <= 0 {
		return
	}
	b.elapsed[p].Add(int64(d))
}

// Elapsed is the cumulative time of every phase in this frame, including open ones.
func (b *Budget) Elapsed() time.Duration {
	now := b.since()
	var total int64
	for i := range b.elapsed {
		total += b.elapsed[i].Load()
		if start := b.started[i].Load(); start != 0 {
			if open := now - (start - 1); open > 0 {
				total += open
			}
		}
	}
	return time.Duration(total)
}

// IsOverBudget reports whether the frame has used more than its allowance.
func (b *Budget) IsOverBudget() bool {
	return b.Elapsed() > b.Target()
}

// Remaining returns the unused allowance, never negative.
func (b *Budget) Remaining() time.Duration {
	if r := b.Target() - b.Elapsed(); r > 0 {
		return r
	}
	return 0
}

// Utilization returns elapsed/target.
func (b *Budget) Utilization() float64 {
	return Utilization(b.Elapsed(), b.Target())
}

// IsDeadlineNear reports whether at least 80% of the allowance is used.
func (b *Budget) IsDeadlineNear() bool {
	return b.Utilization() >= deadlineNearRatio
}

// Stats snapshots the tracker.
func (b *Budget) Stats() PhaseStats {
	now := b.since()
	s := PhaseStats{Target: b.Target()}
	for i := range b.elapsed {
		d := b.elapsed[i].Load()
		if start := b.started[i].Load(); start != 0 {
			if open := now - (start - 1); open > 0 {
				d += open
			}
		}
		s.Elapsed[i] = time.Duration(d)
		s.Total += time.Duration(d)
	}
	s.OverBudget = s.Total > s.Target
	return s
}

func (b *Budget) since() int64 {
	return int64(time.Since(b.epoch))
}
