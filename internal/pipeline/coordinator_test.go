package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framesched/internal/frame"
	"framesched/internal/lifecycle"
)

// fakeTree is a map-backed tree with optional lifecycle machines.
type fakeTree struct {
	root     NodeID
	parent   map[NodeID]NodeID
	children map[NodeID][]NodeID
	elements map[NodeID]*lifecycle.Element
	renders  map[NodeID]*lifecycle.Render
}

func newFakeTree(root NodeID) *fakeTree {
	return &fakeTree{
		root:     root,
		parent:   map[NodeID]NodeID{},
		children: map[NodeID][]NodeID{root: nil},
		elements: map[NodeID]*lifecycle.Element{},
		renders:  map[NodeID]*lifecycle.Render{},
	}
}

func (f *fakeTree) add(parent, child NodeID) *fakeTree {
	f.parent[child] = parent
	f.children[parent] = append(f.children[parent], child)
	if _, ok := f.children[child]; !ok {
		f.children[child] = nil
	}
	return f
}

func (f *fakeTree) Root() NodeID                { return f.root }
func (f *fakeTree) Children(id NodeID) []NodeID { return f.children[id] }
func (f *fakeTree) Len() int                    { return len(f.children) }

func (f *fakeTree) Exists(id NodeID) bool {
	_, ok := f.children[id]
	return ok
}

func (f *fakeTree) Depth(id NodeID) int {
	d := 0
	for cur := id; cur != f.root && d <= len(f.children); d++ {
		cur = f.parent[cur]
	}
	return d
}

// lifecycleTree adds LifecycleSource to fakeTree.
type lifecycleTree struct{ *fakeTree }

func (l lifecycleTree) Element(id NodeID) *lifecycle.Element { return l.elements[id] }
func (l lifecycleTree) Render(id NodeID) *lifecycle.Render   { return l.renders[id] }

// parentTree adds Parenter to fakeTree.
type parentTree struct{ *fakeTree }

func (p parentTree) Parent(id NodeID) (NodeID, bool) {
	parent, ok := p.parent[id]
	return parent, ok
}

// recorder logs hook calls as "Phase:id".
type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	on    map[string]func()
}

func newRecorder() *recorder {
	return &recorder{fail: map[string]error{}, on: map[string]func(){}}
}

func (r *recorder) hook(phase string) func(NodeID) error {
	return func(id NodeID) error {
		key := fmt.Sprintf("%s:%d", phase, id)
		r.mu.Lock()
		r.calls = append(r.calls, key)
		fn, err := r.on[key], r.fail[key]
		r.mu.Unlock()
		if fn != nil {
			fn()
		}
		return err
	}
}

func (r *recorder) hooks() HookFuncs {
	return HookFuncs{
		RebuildFunc: r.hook("build"),
		LayoutFunc:  r.hook("layout"),
		PaintFunc:   r.hook("paint"),
	}
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestCoordinatorOrdering(t *testing.T) {
	tree := newFakeTree(1).add(1, 2).add(1, 3).add(2, 4)

	t.Run("passes run parent first", func(t *testing.T) {
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		for _, id := range []NodeID{4, 3, 1, 2} {
			c.MarkNeedsBuild(id)
		}
		res := c.RunFrame(context.Background(), tree)
		require.True(t, res.Ok())
		assert.Equal(t, []string{"build:1", "build:2", "build:3", "build:4"}, rec.Calls())
		assert.Equal(t, 1, res.Build.Passes)
	})

	t.Run("build then layout then paint", func(t *testing.T) {
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsPaint(3)
		c.MarkNeedsLayout(2)
		c.MarkNeedsBuild(4)
		res := c.RunFrame(context.Background(), tree)
		require.True(t, res.Ok())
		// layout marks paint, so 2 joins 3 in the paint pass
		assert.Equal(t, []string{"build:4", "layout:2", "paint:2", "paint:3"}, rec.Calls())
		assert.Equal(t, 4, res.Processed())
		assert.False(t, c.HasPendingWork())
	})

	t.Run("mark all walks the whole tree", func(t *testing.T) {
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		c.MarkAllNeedsBuild()
		res := c.RunFrame(context.Background(), tree)
		require.True(t, res.Ok())
		assert.Equal(t, []string{"build:1", "build:2", "build:3", "build:4"}, rec.Calls())
	})
}

func TestCoordinatorFixedPoint(t *testing.T) {
	tree := newFakeTree(1).add(1, 2).add(2, 3)
	rec := newRecorder()
	c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})

	// building 1 dirties 3, building 3 dirties layout of 2
	rec.on["build:1"] = func() { c.MarkNeedsBuild(3) }
	rec.on["build:3"] = func() { c.MarkNeedsLayout(2) }

	c.MarkNeedsBuild(1)
	res := c.RunFrame(context.Background(), tree)

	require.True(t, res.Ok())
	assert.Equal(t, []string{"build:1", "build:3", "layout:2", "paint:2"}, rec.Calls())
	assert.Equal(t, 2, res.Build.Passes)
	assert.Equal(t, 1, res.Layout.Passes)
	assert.False(t, c.HasPendingWork())
}

func TestCoordinatorCycles(t *testing.T) {
	t.Run("hooks that dirty each other forever", func(t *testing.T) {
		tree := newFakeTree(1).add(1, 2)
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		rec.on["layout:1"] = func() { c.MarkNeedsLayout(2) }
		rec.on["layout:2"] = func() { c.MarkNeedsLayout(1) }

		c.MarkNeedsLayout(1)
		res := c.RunFrame(context.Background(), tree)

		require.NotNil(t, res.Layout.Aborted)
		assert.ErrorIs(t, res.Layout.Aborted, ErrCycleDetected)
		assert.Equal(t, tree.Len()+1, res.Layout.Passes)
		assert.Equal(t, Completed, res.Outcome)
		assert.False(t, res.Ok())
		assert.False(t, c.Pending(frame.PhaseLayout).HasDirty())
		// paint still runs for nodes laid out before the abort
		assert.Equal(t, 2, res.Paint.Processed)
	})

	t.Run("max passes overrides the bound", func(t *testing.T) {
		tree := newFakeTree(1)
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{MaxPasses: 5, Logger: quietLogger()})
		rec.on["build:1"] = func() { c.MarkNeedsBuild(1) }

		c.MarkNeedsBuild(1)
		res := c.RunFrame(context.Background(), tree)

		require.NotNil(t, res.Build.Aborted)
		assert.Equal(t, NodeID(1), res.Build.Aborted.Node)
		assert.Equal(t, 5, res.Build.Passes)
	})

	t.Run("node that is its own ancestor", func(t *testing.T) {
		ft := newFakeTree(1).add(1, 2).add(2, 3)
		ft.parent[2] = 3 // 2 -> 3 -> 2
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})

		c.MarkNeedsBuild(2)
		res := c.RunFrame(context.Background(), parentTree{ft})

		require.NotNil(t, res.Build.Aborted)
		assert.ErrorIs(t, res.Build.Aborted, ErrCycleDetected)
		assert.Empty(t, rec.Calls())
	})

	t.Run("mark all on a graph with a back edge", func(t *testing.T) {
		ft := newFakeTree(1).add(1, 2)
		ft.children[2] = []NodeID{1}
		c := NewCoordinator(newRecorder().hooks(), Options{Logger: quietLogger()})

		c.MarkAllNeedsBuild()
		res := c.RunFrame(context.Background(), ft)

		require.NotNil(t, res.Build.Aborted)
		assert.ErrorIs(t, res.Build.Aborted, ErrCycleDetected)
	})
}

func TestCoordinatorNodeFailures(t *testing.T) {
	tree := newFakeTree(1).add(1, 2).add(1, 3)
	rec := newRecorder()
	boom := errors.New("boom")
	rec.fail["layout:2"] = boom
	c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})

	c.MarkNeedsLayout(2)
	c.MarkNeedsLayout(3)
	c.MarkNeedsBuild(99)
	res := c.RunFrame(context.Background(), tree)

	assert.Equal(t, Completed, res.Outcome)
	require.Len(t, res.Build.Errors, 1)
	assert.ErrorIs(t, res.Build.Errors[0], ErrElementNotFound)

	require.Len(t, res.Layout.Errors, 1)
	err := res.Layout.Errors[0]
	assert.ErrorIs(t, err, ErrLayoutFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, NodeID(2), err.Node)

	// the phase went on past the failure, and only 3 reached paint
	assert.Equal(t, 1, res.Layout.Processed)
	assert.Equal(t, []string{"layout:2", "layout:3", "paint:3"}, rec.Calls())
	assert.Len(t, res.Errors(), 2)
}

func TestCoordinatorInterruption(t *testing.T) {
	tree := newFakeTree(1).add(1, 2).add(1, 3)

	t.Run("cancelled before the frame", func(t *testing.T) {
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsBuild(2)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := c.RunFrame(ctx, tree)

		assert.Equal(t, Cancelled, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrCancelled)
		assert.Empty(t, rec.Calls())
		assert.True(t, c.Pending(frame.PhaseBuild).IsDirty(2))
	})

	t.Run("cancelled mid phase keeps committed work", func(t *testing.T) {
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		ctx, cancel := context.WithCancel(context.Background())
		rec.on["build:1"] = cancel
		for _, id := range []NodeID{1, 2, 3} {
			c.MarkNeedsBuild(id)
		}
		c.MarkNeedsPaint(3)

		res := c.RunFrame(ctx, tree)

		assert.Equal(t, Cancelled, res.Outcome)
		assert.Equal(t, 1, res.Build.Processed)
		assert.False(t, res.Paint.Ran())
		build := c.Pending(frame.PhaseBuild)
		assert.False(t, build.IsDirty(1))
		assert.True(t, build.IsDirty(2))
		assert.True(t, build.IsDirty(3))
		assert.True(t, c.Pending(frame.PhasePaint).IsDirty(3))

		// the next frame picks up where this one stopped
		res = c.RunFrame(context.Background(), tree)
		require.True(t, res.Ok())
		assert.Equal(t, []string{"build:1", "build:2", "build:3", "paint:3"}, rec.Calls())
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		c := NewCoordinator(newRecorder().hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsLayout(1)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
		defer cancel()

		res := c.RunFrame(ctx, tree)

		assert.Equal(t, Timeout, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrTimeout)
		var te *TimeoutError
		assert.ErrorAs(t, res.Err, &te)
		assert.True(t, c.Pending(frame.PhaseLayout).IsDirty(1))
	})
}

func TestCoordinatorLifecycle(t *testing.T) {
	build := func() (*fakeTree, lifecycleTree) {
		ft := newFakeTree(1).add(1, 2).add(1, 3)
		for _, id := range []NodeID{1, 2, 3} {
			el := lifecycle.NewElement()
			el.Mount()
			ft.elements[id] = el
			r := lifecycle.NewRender(lifecycle.Box, lifecycle.Variable)
			r.Attach()
			ft.renders[id] = r
		}
		return ft, lifecycleTree{ft}
	}

	t.Run("layout and paint drive render state", func(t *testing.T) {
		ft, tree := build()
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsLayout(2)

		res := c.RunFrame(context.Background(), tree)

		require.True(t, res.Ok())
		assert.True(t, ft.renders[2].IsPainted())
		assert.True(t, ft.renders[3].NeedsLayout())

		ft.renders[2].MarkNeedsPaint()
		c.MarkNeedsPaint(2)
		res = c.RunFrame(context.Background(), tree)
		require.True(t, res.Ok())
		assert.True(t, ft.renders[2].IsClean())
	})

	t.Run("inactive elements are not rebuilt", func(t *testing.T) {
		ft, tree := build()
		ft.elements[3].Deactivate()
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsBuild(2)
		c.MarkNeedsBuild(3)

		res := c.RunFrame(context.Background(), tree)

		assert.Equal(t, []string{"build:2"}, rec.Calls())
		assert.Equal(t, 1, res.Build.Skipped)
	})

	t.Run("layout needs a render", func(t *testing.T) {
		ft, tree := build()
		delete(ft.renders, 3)
		c := NewCoordinator(newRecorder().hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsLayout(3)

		res := c.RunFrame(context.Background(), tree)

		require.Len(t, res.Layout.Errors, 1)
		assert.ErrorIs(t, res.Layout.Errors[0], ErrNotRenderElement)
	})

	t.Run("arity is checked before layout", func(t *testing.T) {
		ft, tree := build()
		ft.renders[1] = lifecycle.NewRender(lifecycle.Box, lifecycle.Single)
		ft.renders[1].Attach()
		rec := newRecorder()
		c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsLayout(1)

		res := c.RunFrame(context.Background(), tree)

		require.Len(t, res.Layout.Errors, 1)
		assert.ErrorIs(t, res.Layout.Errors[0], ErrLayoutFailed)
		assert.Empty(t, rec.Calls())
	})

	t.Run("paint before layout is skipped", func(t *testing.T) {
		ft, tree := build()
		c := NewCoordinator(newRecorder().hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsPaint(2)

		res := c.RunFrame(context.Background(), tree)

		assert.Equal(t, 1, res.Paint.Skipped)
		assert.False(t, ft.renders[2].IsPainted())
	})

	t.Run("detached renders are skipped", func(t *testing.T) {
		ft, tree := build()
		ft.renders[2].Detach()
		c := NewCoordinator(newRecorder().hooks(), Options{Logger: quietLogger()})
		c.MarkNeedsLayout(2)

		res := c.RunFrame(context.Background(), tree)

		assert.Equal(t, 1, res.Layout.Skipped)
		assert.False(t, res.Paint.Ran())
	})

	t.Run("sliver protocol uses the sliver hook", func(t *testing.T) {
		ft, tree := build()
		ft.renders[3] = lifecycle.NewRender(lifecycle.Sliver, lifecycle.Variable)
		ft.renders[3].Attach()
		hooks := &sliverHooks{recorder: newRecorder()}
		c := NewCoordinator(hooks, Options{Logger: quietLogger()})
		c.MarkNeedsLayout(2)
		c.MarkNeedsLayout(3)

		res := c.RunFrame(context.Background(), tree)

		require.True(t, res.Ok())
		assert.Equal(t, []string{"layout:2", "sliver:3", "paint:2", "paint:3"}, hooks.Calls())
	})
}

type sliverHooks struct {
	*recorder
}

func (s *sliverHooks) Rebuild(id NodeID) error      { return s.hook("build")(id) }
func (s *sliverHooks) Layout(id NodeID) error       { return s.hook("layout")(id) }
func (s *sliverHooks) Paint(id NodeID) error        { return s.hook("paint")(id) }
func (s *sliverHooks) LayoutSliver(id NodeID) error { return s.hook("sliver")(id) }

func TestCoordinatorParallelLayout(t *testing.T) {
	ft := newFakeTree(1)
	for id := NodeID(2); id <= 17; id++ {
		ft.add(1, id)
		r := lifecycle.NewRender(lifecycle.Box, lifecycle.Leaf)
		r.Attach()
		ft.renders[id] = r
	}
	ft.renders[1] = lifecycle.NewRender(lifecycle.Box, lifecycle.Variable)
	ft.renders[1].Attach()
	tree := lifecycleTree{ft}

	rec := newRecorder()
	boom := errors.New("boom")
	rec.fail["layout:9"] = boom
	c := NewCoordinator(rec.hooks(), Options{
		ParallelLayout:  true,
		ParallelWorkers: 4,
		Logger:          quietLogger(),
	})
	c.MarkAllNeedsLayout()

	res := c.RunFrame(context.Background(), tree)

	assert.Equal(t, 16, res.Layout.Processed)
	require.Len(t, res.Layout.Errors, 1)
	assert.Equal(t, NodeID(9), res.Layout.Errors[0].Node)
	assert.Equal(t, 16, res.Paint.Processed)
	for id, r := range ft.renders {
		if id == 9 {
			assert.True(t, r.NeedsLayout())
			continue
		}
		assert.True(t, r.IsPainted(), "node %d", id)
	}
	// the root level is a single node and stays first
	assert.Equal(t, "layout:1", rec.Calls()[0])
}

func TestCoordinatorFrameRequester(t *testing.T) {
	c := NewCoordinator(newRecorder().hooks(), Options{Logger: quietLogger()})
	requests := 0
	c.SetFrameRequester(func() { requests++ })

	assert.True(t, c.MarkNeedsBuild(3))
	assert.False(t, c.MarkNeedsBuild(3))
	c.MarkNeedsPaint(3)
	c.MarkAllNeedsLayout()
	assert.Equal(t, 3, requests)

	c.SetFrameRequester(nil)
	c.MarkNeedsLayout(4)
	assert.Equal(t, 3, requests)
}

// startingTree records BeginFrame into the same log as the hooks.
type startingTree struct {
	*fakeTree
	rec *recorder
}

func (s startingTree) BeginFrame() {
	s.rec.mu.Lock()
	s.rec.calls = append(s.rec.calls, "begin")
	s.rec.mu.Unlock()
}

func TestCoordinatorFrameStarter(t *testing.T) {
	rec := newRecorder()
	c := NewCoordinator(rec.hooks(), Options{Logger: quietLogger()})
	tree := startingTree{fakeTree: newFakeTree(1), rec: rec}

	c.MarkNeedsBuild(1)
	c.RunFrame(context.Background(), tree)
	c.RunFrame(context.Background(), tree)

	assert.Equal(t, []string{"begin", "build:1", "begin"}, rec.Calls())
}

type phaseLog []string

func (p *phaseLog) BeginPhase(ph frame.Phase) { *p = append(*p, "begin "+ph.String()) }
func (p *phaseLog) EndPhase(ph frame.Phase)   { *p = append(*p, "end "+ph.String()) }

func TestCoordinatorObserver(t *testing.T) {
	c := NewCoordinator(newRecorder().hooks(), Options{Logger: quietLogger()})
	var log phaseLog

	b := Bind(c, newFakeTree(1))
	res := b.RunFrame(context.Background(), &log)

	require.True(t, res.Ok())
	assert.Equal(t, phaseLog{
		"begin Build", "end Build",
		"begin Layout", "end Layout",
		"begin Paint", "end Paint",
	}, log)
	assert.Equal(t, uint64(1), c.FrameCount())

	budget := frame.NewBudget(60)
	c.MarkNeedsBuild(1)
	b.RunFrame(context.Background(), budget)
	assert.False(t, budget.IsOverBudget())
}
