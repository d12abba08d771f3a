// internal/pipeline/coordinator.go

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/sirupsen/logrus"

	"framesched/internal/frame"
	"framesched/internal/lifecycle"
)

// PhaseObserver is told when each pipeline phase starts and stops.
// *frame.Budget satisfies it.
type PhaseObserver interface {
	BeginPhase(p frame.Phase)
	EndPhase(p frame.Phase)
}

// Options tune a Coordinator. The zero value is usable.
type Options struct {
	DirtyCapacity    int  // bitmap size of each dirty set
	MaxPasses        int  // passes per phase before a cycle is reported; 0 = tree size + 1
	ParallelLayout   bool // lay out nodes of one depth level concurrently
	ParallelWorkers  int  // concurrent layout hooks; 0 = unlimited
	MinParallelBatch int  // smallest level worth fanning out; 0 = 2
	Logger           logrus.FieldLogger
}

// Coordinator owns the Build, Layout and Paint dirty sets and drives them to
// a fixed point once per frame.
//
// Marking is safe from any goroutine. RunFrame must only be called from the
// frame goroutine, and only that goroutine touches lifecycle state.
type Coordinator struct {
	hooks Hooks
	opts  Options
	log   logrus.FieldLogger

	build  *DirtySet
	layout *DirtySet
	paint  *DirtySet

	requester atomic.Pointer[func()]
	frames    atomic.Uint64
}

// NewCoordinator creates a coordinator calling hooks for every dirty node.
func NewCoordinator(hooks Hooks, opts Options) *Coordinator {
	if hooks == nil {
		panic("pipeline: nil hooks")
	}
	if opts.MinParallelBatch <= 0 {
		opts.MinParallelBatch = 2
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		hooks:  hooks,
		opts:   opts,
		log:    log.WithField("component", "pipeline"),
		build:  NewDirtySet(opts.DirtyCapacity),
		layout: NewDirtySet(opts.DirtyCapacity),
		paint:  NewDirtySet(opts.DirtyCapacity),
	}
}

// SetFrameRequester installs the callback used when a mark makes work pending.
// The scheduler passes its ScheduleFrame here.
func (c *Coordinator) SetFrameRequester(fn func()) {
	if fn == nil {
		c.requester.Store(nil)
		return
	}
	c.requester.Store(&fn)
}

func (c *Coordinator) MarkNeedsBuild(id NodeID) bool  { return c.mark(c.build, id) }
func (c *Coordinator) MarkNeedsLayout(id NodeID) bool { return c.mark(c.layout, id) }
func (c *Coordinator) MarkNeedsPaint(id NodeID) bool  { return c.mark(c.paint, id) }

// MarkAllNeedsBuild schedules a rebuild of the whole tree.
func (c *Coordinator) MarkAllNeedsBuild() {
	c.build.MarkAllDirty()
	c.requestFrame()
}

// MarkAllNeedsLayout schedules a relayout of the whole tree.
func (c *Coordinator) MarkAllNeedsLayout() {
	c.layout.MarkAllDirty()
	c.requestFrame()
}

// HasPendingWork reports whether any phase has dirty nodes.
func (c *Coordinator) HasPendingWork() bool {
	return c.build.HasDirty() || c.layout.HasDirty() || c.paint.HasDirty()
}

// Pending returns the dirty set of a pipeline phase, or nil for other phases.
func (c *Coordinator) Pending(p frame.Phase) *DirtySet {
	switch p {
	case frame.PhaseBuild:
		return c.build
	case frame.PhaseLayout:
		return c.layout
	case frame.PhasePaint:
		return c.paint
	default:
		return nil
	}
}

// FrameCount returns how many frames the coordinator has run.
func (c *Coordinator) FrameCount() uint64 {
	return c.frames.Load()
}

func (c *Coordinator) mark(set *DirtySet, id NodeID) bool {
	if !set.MarkDirty(id) {
		return false
	}
	c.requestFrame()
	return true
}

func (c *Coordinator) requestFrame() {
	if fn := c.requester.Load(); fn != nil {
		(*fn)()
	}
}

// RunFrame drains Build, then Layout, then Paint.
func (c *Coordinator) RunFrame(ctx context.Context, tree Tree) FrameResult {
	return c.RunFrameObserved(ctx, tree, nil)
}

// RunFrameObserved is RunFrame with phase boundaries reported to obs.
//
// A cancelled or expired ctx stops the frame between nodes: work already
// done is kept, drained but unprocessed ids are marked dirty again, and later
// phases are left for the next frame.
func (c *Coordinator) RunFrameObserved(ctx context.Context, tree Tree, obs PhaseObserver) FrameResult {
	start := time.Now()
	res := FrameResult{Frame: c.frames.Add(1)}
	res.Build.Phase = frame.PhaseBuild
	res.Layout.Phase = frame.PhaseLayout
	res.Paint.Phase = frame.PhasePaint

	if fs, ok := tree.(FrameStarter); ok {
		fs.BeginFrame()
	}

	run := &frameRun{c: c, tree: tree}
	run.source, _ = tree.(LifecycleSource)
	run.parents, _ = tree.(Parenter)

	for _, pr := range res.Phases() {
		if obs != nil {
			obs.BeginPhase(pr.Phase)
		}
		phaseStart := time.Now()
		err := run.phase(ctx, pr)
		pr.Elapsed = time.Since(phaseStart)
		if obs != nil {
			obs.EndPhase(pr.Phase)
		}
		if err != nil {
			res.Outcome, res.Err = c.interruption(ctx, err, start)
			c.log.WithFields(logrus.Fields{
				"frame": res.Frame,
				"phase": pr.Phase,
			}).WithError(res.Err).Error("frame interrupted")
			break
		}
	}

	res.Elapsed = time.Since(start)
	c.log.WithFields(logrus.Fields{
		"frame":     res.Frame,
		"outcome":   res.Outcome,
		"processed": res.Processed(),
		"elapsed":   res.Elapsed,
	}).Debug("pipeline frame done")
	return res
}

func (c *Coordinator) interruption(ctx context.Context, err error, start time.Time) (Outcome, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		var budget time.Duration
		if deadline, ok := ctx.Deadline(); ok {
			budget = deadline.Sub(start)
		}
		return Timeout, &TimeoutError{Deadline: budget}
	}
	return Cancelled, ErrCancelled
}

// frameRun carries per-frame state shared by the three phases.
type frameRun struct {
	c       *Coordinator
	tree    Tree
	source  LifecycleSource
	parents Parenter
}

func (r *frameRun) set(p frame.Phase) *DirtySet {
	return r.c.Pending(p)
}

// phase drains one dirty set to a fixed point. It returns a non-nil error only
// when ctx stops the frame.
func (r *frameRun) phase(ctx context.Context, pr *PhaseResult) error {
	set := r.set(pr.Phase)
	bound := r.c.opts.MaxPasses
	if bound <= 0 {
		bound = r.tree.Len() + 1
	}
	visits := make(map[NodeID]int)

	for set.HasDirty() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pr.Passes >= bound {
			r.abort(pr, mostVisited(visits), fmt.Errorf("no fixed point after %d passes", bound))
			return nil
		}
		pr.Passes++

		batch := set.Drain()
		ids, cyc := r.order(pr, batch)
		if cyc != nil {
			r.abort(pr, cyc.Node, cyc.Reason)
			return nil
		}

		var err error
		if pr.Phase == frame.PhaseLayout && r.c.opts.ParallelLayout {
			err = r.layoutParallel(ctx, pr, ids, visits)
		} else {
			err = r.sequential(ctx, pr, ids, visits)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *frameRun) sequential(ctx context.Context, pr *PhaseResult, ids []NodeID, visits map[NodeID]int) error {
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			r.remark(pr.Phase, ids[i:])
			return err
		}
		visits[id]++
		r.process(pr, id)
	}
	return nil
}

func (r *frameRun) process(pr *PhaseResult, id NodeID) {
	switch pr.Phase {
	case frame.PhaseBuild:
		r.buildNode(pr, id)
	case frame.PhaseLayout:
		render, ok := r.prepareLayout(pr, id)
		if !ok {
			return
		}
		r.finishLayout(pr, id, render, r.layoutHook(id, render))
	case frame.PhasePaint:
		r.paintNode(pr, id)
	}
}

func (r *frameRun) buildNode(pr *PhaseResult, id NodeID) {
	if r.source != nil {
		if el := r.source.Element(id); el != nil && !el.CanBuild() {
			pr.Skipped++
			return
		}
	}
	if err := r.c.hooks.Rebuild(id); err != nil {
		r.fail(pr, id, failedKind(pr.Phase), err)
		return
	}
	pr.Processed++
}

// prepareLayout applies the lifecycle checks that must run on the frame
// goroutine before the layout hook. It reports whether the hook should run.
func (r *frameRun) prepareLayout(pr *PhaseResult, id NodeID) (*lifecycle.Render, bool) {
	if r.source == nil {
		return nil, true
	}
	render := r.source.Render(id)
	if render == nil {
		r.fail(pr, id, ErrNotRenderElement, nil)
		return nil, false
	}
	if !render.IsAttached() {
		pr.Skipped++
		return nil, false
	}
	if err := render.Arity().Check(len(r.tree.Children(id))); err != nil {
		r.fail(pr, id, ErrLayoutFailed, err)
		return nil, false
	}
	render.MarkNeedsLayout()
	return render, true
}

func (r *frameRun) layoutHook(id NodeID, render *lifecycle.Render) error {
	if render != nil && render.Protocol() == lifecycle.Sliver {
		if sh, ok := r.c.hooks.(SliverHooks); ok {
			return sh.LayoutSliver(id)
		}
	}
	return r.c.hooks.Layout(id)
}

func (r *frameRun) finishLayout(pr *PhaseResult, id NodeID, render *lifecycle.Render, err error) {
	if err != nil {
		r.fail(pr, id, ErrLayoutFailed, err)
		return
	}
	if render != nil {
		render.MarkLaidOut()
	}
	r.c.paint.MarkDirty(id)
	pr.Processed++
}

func (r *frameRun) paintNode(pr *PhaseResult, id NodeID) {
	var render *lifecycle.Render
	if r.source != nil {
		render = r.source.Render(id)
		if render == nil {
			r.fail(pr, id, ErrNotRenderElement, nil)
			return
		}
		if !render.IsLaidOut() {
			pr.Skipped++
			return
		}
		render.MarkNeedsPaint()
	}
	if err := r.c.hooks.Paint(id); err != nil {
		r.fail(pr, id, failedKind(pr.Phase), err)
		return
	}
	if render != nil {
		render.MarkPainted()
	}
	pr.Processed++
}

// order turns a drained batch into one pass sorted by (depth, id). Missing ids
// are reported as ErrElementNotFound. A non-nil NodeError means the tree
// itself is cyclic.
func (r *frameRun) order(pr *PhaseResult, batch Batch) ([]NodeID, *NodeError) {
	pass := treeset.NewWith(byDepth)

	if batch.All {
		ids, cyc := r.walk(pr.Phase)
		if cyc != nil {
			return nil, cyc
		}
		for _, id := range ids {
			pass.Add(depthKey{depth: r.tree.Depth(id), id: id})
		}
	}
	for _, id := range batch.IDs {
		if !r.tree.Exists(id) {
			r.fail(pr, id, ErrElementNotFound, nil)
			continue
		}
		if cyc := r.checkAncestors(pr.Phase, id); cyc != nil {
			return nil, cyc
		}
		pass.Add(depthKey{depth: r.tree.Depth(id), id: id})
	}

	ids := make([]NodeID, 0, pass.Size())
	for _, v := range pass.Values() {
		ids = append(ids, v.(depthKey).id)
	}
	return ids, nil
}

// walk expands MarkAllDirty into every node reachable from the root.
func (r *frameRun) walk(phase frame.Phase) ([]NodeID, *NodeError) {
	root := r.tree.Root()
	if root == 0 || !r.tree.Exists(root) {
		return nil, nil
	}
	visited := map[NodeID]bool{root: true}
	out := []NodeID{root}
	for i := 0; i < len(out); i++ {
		for _, child := range r.tree.Children(out[i]) {
			if visited[child] {
				return nil, nodeError(phase, child, ErrCycleDetected,
					fmt.Errorf("node %d reached twice from root", child))
			}
			visited[child] = true
			out = append(out, child)
		}
	}
	return out, nil
}

func (r *frameRun) checkAncestors(phase frame.Phase, id NodeID) *NodeError {
	if r.parents == nil {
		return nil
	}
	limit := r.tree.Len() + 1
	cur := id
	for steps := 0; ; steps++ {
		parent, ok := r.parents.Parent(cur)
		if !ok {
			return nil
		}
		if parent == id || steps >= limit {
			return nodeError(phase, id, ErrCycleDetected, fmt.Errorf("node %d is its own ancestor", id))
		}
		cur = parent
	}
}

func (r *frameRun) remark(phase frame.Phase, ids []NodeID) {
	set := r.set(phase)
	for _, id := range ids {
		set.MarkDirty(id)
	}
}

func (r *frameRun) fail(pr *PhaseResult, id NodeID, kind, reason error) {
	err := nodeError(pr.Phase, id, kind, reason)
	pr.Errors = append(pr.Errors, err)
	r.c.log.WithFields(logrus.Fields{
		"phase": pr.Phase,
		"node":  id,
	}).WithError(err).Warn("node failed")
}

// abort stops the phase on a cycle. Whatever is still dirty is dropped so the
// next frame does not spin on the same cycle.
func (r *frameRun) abort(pr *PhaseResult, id NodeID, reason error) {
	pr.Aborted = nodeError(pr.Phase, id, ErrCycleDetected, reason)
	r.set(pr.Phase).Drain()
	r.c.log.WithFields(logrus.Fields{
		"phase":  pr.Phase,
		"node":   id,
		"passes": pr.Passes,
	}).WithError(pr.Aborted).Error("phase aborted")
}

// mostVisited picks the node processed most often, lowest id on ties.
func mostVisited(visits map[NodeID]int) NodeID {
	var best NodeID
	bestCount := 0
	for id, n := range visits {
		if n > bestCount || (n == bestCount && id < best) {
			best, bestCount = id, n
		}
	}
	return best
}

type depthKey struct {
	depth int
	id    NodeID
}

// byDepth orders nodes parent-first: ascending depth, then ascending id.
func byDepth(a, b any) int {
	ka, kb := a.(depthKey), b.(depthKey)
	switch {
	case ka.depth < kb.depth:
		return -1
	case ka.depth > kb.depth:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}
