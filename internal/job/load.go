// internal/job/load.go

package job

import (
	"context"
	"math/rand/v2"
	"time"

	"framesched/internal/sched"
)

// Load generates a synthetic per-frame task mix for simulations.
type Load struct {
	PerFrame int           // tasks queued per frame
	MaxCost  time.Duration // upper bound of one task's CPU time
	rng      *rand.Rand
}

// NewLoad creates a deterministic generator for the given seed.
func NewLoad(perFrame int, maxCost time.Duration, seed uint64) *Load {
	return &Load{
		PerFrame: perFrame,
		MaxCost:  maxCost,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Next returns the priority and cost of the next task.
func (l *Load) Next() (sched.Priority, time.Duration) {
	p := sched.AllPriorities[l.rng.IntN(len(sched.AllPriorities))]
	var cost time.Duration
	if l.MaxCost > 0 {
		cost = time.Duration(l.rng.Int64N(int64(l.MaxCost)))
	}
	return p, cost
}

// Enqueue queues one frame's worth of tasks on s and returns their ids.
func (l *Load) Enqueue(s *sched.Scheduler) []sched.TaskID {
	ids := make([]sched.TaskID, 0, l.PerFrame)
	for i := 0; i < l.PerFrame; i++ {
		p, cost := l.Next()
		ids = append(ids, s.AddTask(p, Work(p, cost)))
	}
	return ids
}

// Blocking reports whether tasks of priority p model I/O. Idle work stands
// for background loads and saves; everything else is CPU bound.
func Blocking(p sched.Priority) bool {
	return p == sched.Idle
}

// Work returns the task body for one generated task.
func Work(p sched.Priority, cost time.Duration) func(context.Context) error {
	if Blocking(p) {
		return SleepWork(cost)
	}
	return SpinWork(cost)
}

// Func adapts a plain function to the task signature.
func Func(fn func()) func(context.Context) error {
	return func(context.Context) error {
		fn()
		return nil
	}
}
