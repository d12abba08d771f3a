// internal/sched/phase.go

package sched

import "errors"

// SchedulerPhase is where the scheduler currently is within a frame.
type SchedulerPhase int32

const (
	PhaseIdle SchedulerPhase = iota
	PhaseTransientCallbacks
	PhaseMidFrameMicrotasks
	PhasePersistentCallbacks // also covers tasks and the pipeline
	PhasePostFrameCallbacks
)

func (p SchedulerPhase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseTransientCallbacks:
		return "TransientCallbacks"
	case PhaseMidFrameMicrotasks:
		return "MidFrameMicrotasks"
	case PhasePersistentCallbacks:
		return "PersistentCallbacks"
	case PhasePostFrameCallbacks:
		return "PostFrameCallbacks"
	default:
		return "Unknown"
	}
}

// InFrame reports whether a frame is executing.
func (p SchedulerPhase) InFrame() bool {
	return p != PhaseIdle
}

var (
	// ErrReentrantFrame is the panic value when a frame callback or task
	// starts another frame on the frame goroutine.
	ErrReentrantFrame = errors.New("sched: frame started from within a frame")

	// ErrConcurrentFrame is the panic value when a second goroutine starts a
	// frame while one is executing.
	ErrConcurrentFrame = errors.New("sched: frame already executing on another goroutine")
)
