// internal/pipeline/tree.go

package pipeline

import "framesched/internal/lifecycle"

// Tree is the read-only view of the element tree the coordinator needs.
// Storage and navigation belong to the host framework.
type Tree interface {
	Root() NodeID
	Children(id NodeID) []NodeID
	Depth(id NodeID) int
	Exists(id NodeID) bool
	Len() int
}

// Parenter is implemented by trees that can walk upward. The coordinator uses
// it to detect ancestor cycles before processing a node.
type Parenter interface {
	Parent(id NodeID) (NodeID, bool)
}

// LifecycleSource exposes per-node lifecycle machines. Either method may
// return nil for nodes without that lifecycle.
type LifecycleSource interface {
	Element(id NodeID) *lifecycle.Element
	Render(id NodeID) *lifecycle.Render
}

// FrameStarter is implemented by trees that defer lifecycle changes made by
// other goroutines. BeginFrame runs on the frame goroutine before Build, so
// lifecycle state is only ever written there.
type FrameStarter interface {
	BeginFrame()
}

// Hooks perform the actual per-node work. A hook may mark other nodes dirty
// through the coordinator while it runs.
type Hooks interface {
	Rebuild(id NodeID) error
	Layout(id NodeID) error
	Paint(id NodeID) error
}

// SliverHooks is implemented by hooks that lay out sliver nodes separately.
type SliverHooks interface {
	LayoutSliver(id NodeID) error
}

// HookFuncs adapts plain functions to Hooks. Nil functions succeed.
type HookFuncs struct {
	RebuildFunc func(NodeID) error
	LayoutFunc  func(NodeID) error
	PaintFunc   func(NodeID) error
}

func (h HookFuncs) Rebuild(id NodeID) error {
	if h.RebuildFunc == nil {
		return nil
	}
	return h.RebuildFunc(id)
}

func (h HookFuncs) Layout(id NodeID) error {
	if h.LayoutFunc == nil {
		return nil
	}
	return h.LayoutFunc(id)
}

func (h HookFuncs) Paint(id NodeID) error {
	if h.PaintFunc == nil {
		return nil
	}
	return h.PaintFunc(id)
}
