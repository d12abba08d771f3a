// internal/sched/default.go

package sched

import "sync/atomic"

var defaultScheduler atomic.Pointer[Scheduler]

// Default returns the process-wide scheduler, creating one from
// DefaultConfig on first use. Code that can take a *Scheduler should.
func Default() *Scheduler {
	if s := defaultScheduler.Load(); s != nil {
		return s
	}
	defaultScheduler.CompareAndSwap(nil, New(DefaultConfig()))
	return defaultScheduler.Load()
}

// SetDefault replaces the process-wide scheduler.
func SetDefault(s *Scheduler) {
	defaultScheduler.Store(s)
}
