// internal/pipeline/result.go

package pipeline

import (
	"time"

	"framesched/internal/frame"
)

// Outcome says how a frame ended.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// PhaseResult summarizes one of Build, Layout or Paint.
type PhaseResult struct {
	Phase     frame.Phase
	Processed int // hook calls that succeeded
	Skipped   int // ids dropped by lifecycle rules (inactive element, detached render)
	Passes    int
	Elapsed   time.Duration
	Errors    []*NodeError
	Aborted   *NodeError // set when a cycle stopped the phase
}

// Ran reports whether the phase did any work at all.
func (r PhaseResult) Ran() bool {
	return r.Passes > 0
}

// FrameResult is everything the coordinator learned while running one frame.
type FrameResult struct {
	Frame   uint64
	Outcome Outcome
	Build   PhaseResult
	Layout  PhaseResult
	Paint   PhaseResult
	Elapsed time.Duration
	Err     error // *TimeoutError or ErrCancelled, nil when completed
}

// Phases returns the three phase results in execution order.
func (r *FrameResult) Phases() []*PhaseResult {
	return []*PhaseResult{&r.Build, &r.Layout, &r.Paint}
}

// Errors aggregates node failures, cycle aborts and the frame-level error.
func (r FrameResult) Errors() []error {
	var errs []error
	for _, p := range r.Phases() {
		for _, e := range p.Errors {
			errs = append(errs, e)
		}
		if p.Aborted != nil {
			errs = append(errs, p.Aborted)
		}
	}
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	return errs
}

// Ok reports a completed frame with no failures.
func (r FrameResult) Ok() bool {
	return r.Outcome == Completed && len(r.Errors()) == 0
}

// Processed counts successful hook calls across all phases.
func (r FrameResult) Processed() int {
	return r.Build.Processed + r.Layout.Processed + r.Paint.Processed
}
