// internal/scene/scene.go

// Package scene is an in-memory element tree that plugs into the pipeline
// coordinator. It is the reference host used by the simulator and by tests.
package scene

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"framesched/internal/job"
	"framesched/internal/lifecycle"
	"framesched/internal/pipeline"
)

var ErrNoSuchNode = errors.New("scene: no such node")

// Node is one element of the scene with its render object. Element and
// Render belong to the frame goroutine; read them between frames only.
type Node struct {
	ID       pipeline.NodeID
	Parent   pipeline.NodeID // 0 for the root
	Children []pipeline.NodeID
	Depth    int
	Name     string

	Element *lifecycle.Element
	Render  *lifecycle.Render

	builds  atomic.Int64
	layouts atomic.Int64
	paints  atomic.Int64
}

// Counts returns how often each hook ran for the node.
func (n *Node) Counts() (builds, layouts, paints int64) {
	return n.builds.Load(), n.layouts.Load(), n.paints.Load()
}

// Invalidator is the part of the coordinator the scene's hooks use.
type Invalidator interface {
	MarkNeedsBuild(pipeline.NodeID) bool
	MarkNeedsLayout(pipeline.NodeID) bool
	MarkNeedsPaint(pipeline.NodeID) bool
}

// Cost is the simulated CPU time of each hook.
type Cost struct {
	Build  time.Duration
	Layout time.Duration
	Paint  time.Duration
}

// lifecycleOp is a lifecycle change waiting for the frame goroutine.
type lifecycleOp struct {
	node *Node
	kind opKind
}

type opKind uint8

const (
	opMount opKind = iota
	opUnmount
	opActivate
	opDeactivate
)

// Scene owns the nodes. Structure changes take the write lock; the pipeline
// reads under the read lock, so hooks may run concurrently during parallel layout.
//
// Lifecycle machines are only touched on the frame goroutine: Add, Remove and
// SetActive queue their lifecycle changes, and BeginFrame applies them before
// the first phase of the next frame.
type Scene struct {
	mu    sync.RWMutex // protects nodes, root and next
	nodes map[pipeline.NodeID]*Node
	root  pipeline.NodeID
	next  pipeline.NodeID

	opsMu sync.Mutex // protects ops
	ops   []lifecycleOp

	cost  Cost
	inval atomic.Pointer[Invalidator]
	log   logrus.FieldLogger
}

// New creates an empty scene.
func New(cost Cost, log logrus.FieldLogger) *Scene {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scene{
		nodes: make(map[pipeline.NodeID]*Node),
		cost:  cost,
		log:   log.WithField("component", "scene"),
	}
}

// Attach connects the scene to the coordinator that drives it.
func (s *Scene) Attach(inv Invalidator) {
	s.inval.Store(&inv)
}

func (s *Scene) invalidator() Invalidator {
	if p := s.inval.Load(); p != nil {
		return *p
	}
	return nil
}

// AddRoot creates the root node. It fails when a root exists.
func (s *Scene) AddRoot(name string, protocol lifecycle.Protocol, arity lifecycle.Arity) (pipeline.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root != 0 {
		return 0, fmt.Errorf("scene: root %d already exists", s.root)
	}
	n := s.newNode(name, protocol, arity)
	s.root = n.ID
	s.queue(n, opMount)
	return n.ID, nil
}

// Add creates a child of parent and marks it for build and layout.
func (s *Scene) Add(parent pipeline.NodeID, name string, protocol lifecycle.Protocol, arity lifecycle.Arity) (pipeline.NodeID, error) {
	s.mu.Lock()
	p, ok := s.nodes[parent]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("add under %d: %w", parent, ErrNoSuchNode)
	}
	n := s.newNode(name, protocol, arity)
	n.Parent = parent
	n.Depth = p.Depth + 1
	p.Children = append(p.Children, n.ID)
	s.queue(n, opMount)
	s.mu.Unlock()

	// NOTE: marks happen outside the lock; they may request a frame.
	if inv := s.invalidator(); inv != nil {
		inv.MarkNeedsBuild(n.ID)
		inv.MarkNeedsLayout(parent)
	}
	return n.ID, nil
}

// newNode requires s.mu.
func (s *Scene) newNode(name string, protocol lifecycle.Protocol, arity lifecycle.Arity) *Node {
	s.next++
	n := &Node{
		ID:      s.next,
		Name:    name,
		Element: lifecycle.NewElement(),
		Render:  lifecycle.NewRender(protocol, arity),
	}
	s.nodes[n.ID] = n
	return n
}

func (s *Scene) queue(n *Node, kind opKind) {
	s.opsMu.Lock()
	s.ops = append(s.ops, lifecycleOp{node: n, kind: kind})
	s.opsMu.Unlock()
}

// BeginFrame applies queued lifecycle changes in the order they were made.
// It implements pipeline.FrameStarter and must run on the frame goroutine.
func (s *Scene) BeginFrame() {
	s.opsMu.Lock()
	ops := s.ops
	s.ops = nil
	s.opsMu.Unlock()

	for _, op := range ops {
		el, r := op.node.Element, op.node.Render
		switch op.kind {
		case opMount:
			el.Mount()
			r.Attach()
		case opUnmount:
			if el.State() == lifecycle.Active {
				el.Deactivate()
			}
			el.Unmount()
			r.Detach()
		case opActivate:
			if el.State() == lifecycle.Inactive {
				el.Activate()
			}
		case opDeactivate:
			if el.State() == lifecycle.Active {
				el.Deactivate()
			}
		}
	}
}

// PendingChanges counts lifecycle changes waiting for the next frame.
func (s *Scene) PendingChanges() int {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()
	return len(s.ops)
}

// Remove takes id and its subtree out of the scene at once; their unmount is
// applied by the next BeginFrame. The parent is marked for layout.
func (s *Scene) Remove(id pipeline.NodeID) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove %d: %w", id, ErrNoSuchNode)
	}
	parent := n.Parent
	if p, ok := s.nodes[parent]; ok {
		for i, c := range p.Children {
			if c == id {
				p.Children = append(p.Children[:i:i], p.Children[i+1:]...)
				break
			}
		}
	}
	if id == s.root {
		s.root = 0
	}
	removed := s.unmountLocked(n)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"node": id, "removed": removed}).Debug("subtree unmounted")

	if inv := s.invalidator(); inv != nil && parent != 0 {
		inv.MarkNeedsLayout(parent)
	}
	return nil
}

// unmountLocked requires s.mu and returns the number of nodes removed.
// Children are unmounted before their parent.
func (s *Scene) unmountLocked(n *Node) int {
	removed := 1
	for _, c := range n.Children {
		if child, ok := s.nodes[c]; ok {
			removed += s.unmountLocked(child)
		}
	}
	s.queue(n, opUnmount)
	delete(s.nodes, n.ID)
	return removed
}

// SetActive deactivates or reactivates a node from the next frame on.
// Inactive nodes are not rebuilt; a reactivated node is marked for build.
func (s *Scene) SetActive(id pipeline.NodeID, active bool) error {
	s.mu.RLock()
	n, ok := s.nodes[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("set active %d: %w", id, ErrNoSuchNode)
	}
	if !active {
		s.queue(n, opDeactivate)
		return nil
	}
	s.queue(n, opActivate)
	if inv := s.invalidator(); inv != nil {
		inv.MarkNeedsBuild(id)
	}
	return nil
}

// Node returns the node with id.
func (s *Scene) Node(id pipeline.NodeID) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// ---- pipeline.Tree ----

func (s *Scene) Root() pipeline.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *Scene) Children(id pipeline.NodeID) []pipeline.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.nodes[id]; ok {
		return append([]pipeline.NodeID(nil), n.Children...)
	}
	return nil
}

func (s *Scene) Depth(id pipeline.NodeID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.nodes[id]; ok {
		return n.Depth
	}
	return 0
}

func (s *Scene) Exists(id pipeline.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Parent implements pipeline.Parenter.
func (s *Scene) Parent(id pipeline.NodeID) (pipeline.NodeID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok || n.Parent == 0 {
		return 0, false
	}
	return n.Parent, true
}

// Element implements pipeline.LifecycleSource.
func (s *Scene) Element(id pipeline.NodeID) *lifecycle.Element {
	if n, ok := s.Node(id); ok {
		return n.Element
	}
	return nil
}

// Render implements pipeline.LifecycleSource.
func (s *Scene) Render(id pipeline.NodeID) *lifecycle.Render {
	if n, ok := s.Node(id); ok {
		return n.Render
	}
	return nil
}

// ---- pipeline.Hooks ----

// Rebuild simulates a build; a rebuilt node always needs layout.
func (s *Scene) Rebuild(id pipeline.NodeID) error {
	n, ok := s.Node(id)
	if !ok {
		return ErrNoSuchNode
	}
	job.Spin(s.cost.Build)
	n.builds.Add(1)
	if inv := s.invalidator(); inv != nil {
		inv.MarkNeedsLayout(id)
	}
	return nil
}

func (s *Scene) Layout(id pipeline.NodeID) error {
	n, ok := s.Node(id)
	if !ok {
		return ErrNoSuchNode
	}
	job.Spin(s.cost.Layout)
	n.layouts.Add(1)
	return nil
}

// LayoutSliver lays out scrolling content; it costs the same as box layout here.
func (s *Scene) LayoutSliver(id pipeline.NodeID) error {
	return s.Layout(id)
}

func (s *Scene) Paint(id pipeline.NodeID) error {
	n, ok := s.Node(id)
	if !ok {
		return ErrNoSuchNode
	}
	job.Spin(s.cost.Paint)
	n.paints.Add(1)
	return nil
}

var (
	_ pipeline.Tree            = (*Scene)(nil)
	_ pipeline.Parenter        = (*Scene)(nil)
	_ pipeline.LifecycleSource = (*Scene)(nil)
	_ pipeline.Hooks           = (*Scene)(nil)
	_ pipeline.SliverHooks     = (*Scene)(nil)
	_ pipeline.FrameStarter    = (*Scene)(nil)
)
