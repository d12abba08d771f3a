// internal/pipeline/errors.go

package pipeline

import (
	"errors"
	"fmt"
	"time"

	"framesched/internal/frame"
)

var (
	ErrElementNotFound  = errors.New("element not found")
	ErrNotRenderElement = errors.New("not a render element")
	ErrBuildFailed      = errors.New("build failed")
	ErrLayoutFailed     = errors.New("layout failed")
	ErrPaintFailed      = errors.New("paint failed")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrCancelled        = errors.New("frame cancelled")
	ErrTimeout          = errors.New("frame deadline exceeded")
)

// NodeError is a failure attributed to one node during one phase.
type NodeError struct {
	Phase  frame.Phase
	Node   NodeID
	Kind   error // one of the Err* sentinels
	Reason error // hook error or detail, may be nil
}

func (e *NodeError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("%s: node %d: %v", e.Phase, e.Node, e.Kind)
	}
	return fmt.Sprintf("%s: node %d: %v: %v", e.Phase, e.Node, e.Kind, e.Reason)
}

func (e *NodeError) Unwrap() []error {
	if e.Reason == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Reason}
}

// TimeoutError reports a frame that hit its deadline.
type TimeoutError struct {
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v after %v", ErrTimeout, e.Deadline)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Other wraps a failure that fits none of the pipeline kinds.
func Other(message string) error {
	return errors.New(message)
}

func nodeError(phase frame.Phase, id NodeID, kind, reason error) *NodeError {
	return &NodeError{Phase: phase, Node: id, Kind: kind, Reason: reason}
}

func failedKind(phase frame.Phase) error {
	switch phase {
	case frame.PhaseBuild:
		return ErrBuildFailed
	case frame.PhaseLayout:
		return ErrLayoutFailed
	default:
		return ErrPaintFailed
	}
}
