// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"github.com/sirupsen/logrus"

	"framesched/internal/frame"
	"framesched/internal/pipeline"
)

// FramePipeline is the Build/Layout/Paint stage run inside every frame.
// *pipeline.Bound implements it.
type FramePipeline interface {
	RunFrame(ctx context.Context, obs pipeline.PhaseObserver) pipeline.FrameResult
}

// frameRequester is implemented by pipelines that can ask for a frame when
// they receive work.
type frameRequester interface {
	SetFrameRequester(func())
}

// pendingReporter is implemented by pipelines that can tell whether work is
// still queued once their frame has run.
type pendingReporter interface {
	HasPendingWork() bool
}

// Scheduler drives frames: callbacks, prioritized tasks and the pipeline,
// measured against a per-frame budget. One frame runs at a time.
type Scheduler struct {
	// configuration
	cfg      Config
	log      logrus.FieldLogger
	pipeline FramePipeline

	mu        sync.Mutex // protects strategy, policy and listeners
	strategy  SchedulingStrategy
	policy    BudgetPolicy
	listeners []lifecycleEntry

	// frame state
	phase     atomic.Int32 // SchedulerPhase
	owner     atomic.Int64 // goid of the frame goroutine while a frame runs
	scheduled atomic.Bool
	warmedUp  atomic.Bool

	queue      *TaskQueue
	budget     *frame.Budget
	clock      *FrameClock
	transient  onceCallbacks
	persistent persistentCallbacks
	postFrame  onceCallbacks
	callbackID atomic.Uint64

	microMu    sync.Mutex // protects microtasks
	microtasks []func()

	waitMu  sync.Mutex // protects waiters
	waiters []*FrameCompletion

	// statistics
	history   *frameHistory
	skipMode  atomic.Int32 // FrameSkipPolicy
	maxSkip   atomic.Int32
	skipped   atomic.Uint64
	lastFrame atomic.Int64 // unix nanos of the last frame end, 0 after an idle tick
	appState  atomic.Int32 // AppLifecycleState

	// event stream and logging
	statusCh  chan StatusEvent
	dropped   atomic.Uint64
	csvMu     sync.Mutex // protects csvFile and csvWriter
	csvFile   *os.File
	csvWriter *csv.Writer
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithPipeline installs the Build/Layout/Paint stage.
func WithPipeline(p FramePipeline) Option {
	return func(s *Scheduler) { s.pipeline = p }
}

// WithStrategy replaces DefaultStrategy.
func WithStrategy(fn SchedulingStrategy) Option {
	return func(s *Scheduler) { s.strategy = fn }
}

// WithPolicy overrides the budget policy named in the config.
func WithPolicy(p BudgetPolicy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// New creates a Scheduler with the given configuration. Unknown policy names
// fall back to their defaults; run Config.Validate first to reject them.
func New(cfg Config, opts ...Option) *Scheduler {
	cfg = cfg.clamp()
	s := &Scheduler{
		cfg:      cfg,
		log:      logrus.StandardLogger(),
		strategy: DefaultStrategy,
		queue:    NewTaskQueue(),
		budget:   frame.NewBudget(cfg.TargetFPS),
		clock:    NewFrameClock(),
		history:  newFrameHistory(cfg.HistorySize),
		statusCh: make(chan StatusEvent, statusBuffer),
	}
	if p, err := PolicyByName(cfg.BudgetPolicy); err == nil {
		s.policy = p
	} else {
		s.policy = DeferLowPriority{}
	}
	skip, _ := ParseSkipPolicy(cfg.SkipPolicy)
	s.skipMode.Store(int32(skip))
	s.maxSkip.Store(int32(cfg.MaxFrameSkip))

	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "sched")

	if r, ok := s.pipeline.(frameRequester); ok {
		r.SetFrameRequester(s.ensureVisualUpdate)
	}
	return s
}

// FrameReport describes one executed frame.
type FrameReport struct {
	ID         string // unique per frame, for tracing across logs
	Number     uint64
	Timing     frame.Timing
	Transient  int // callbacks fired
	Microtasks int
	Persistent int
	PostFrame  int
	Tasks      ExecResult
	Pipeline   pipeline.FrameResult
	Outcome    pipeline.Outcome
	Err        error // *pipeline.TimeoutError or pipeline.ErrCancelled
	Stats      frame.PhaseStats
	Elapsed    time.Duration
	Janky      bool
}

// ExecuteFrame runs one complete frame.
func (s *Scheduler) ExecuteFrame() FrameReport {
	return s.ExecuteFrameContext(context.Background())
}

// ExecuteFrameContext runs one complete frame. ctx, further bounded by the
// configured frame deadline, limits the tasks and the pipeline; callbacks
// always run. It panics with ErrReentrantFrame or ErrConcurrentFrame when a
// frame is already executing.
func (s *Scheduler) ExecuteFrameContext(ctx context.Context) FrameReport {
	s.enter()
	defer s.leave()

	start := time.Now()
	s.budget.Reset()
	s.scheduled.Store(false)

	number := s.clock.beginFrame()
	timing := frame.Timing{Frame: number, Timestamp: s.clock.Now(), Start: start}
	rep := FrameReport{ID: uuid.NewString(), Number: number, Timing: timing}

	deadline := s.cfg.FrameDeadline()
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	// 1) transient callbacks
	rep.Transient = s.measure(frame.PhaseAnimate, func() int {
		return s.transient.run(timing.WithPhase(frame.PhaseAnimate))
	})

	// 2) microtasks queued so far, including those queued by microtasks
	s.setPhase(PhaseMidFrameMicrotasks)
	rep.Microtasks = s.measure(frame.PhaseMicrotasks, s.flushMicrotasks)

	// 3) persistent callbacks, in registration order
	s.setPhase(PhasePersistentCallbacks)
	rep.Persistent = s.measure(frame.PhasePersistent, func() int {
		return s.persistent.run(timing.WithPhase(frame.PhasePersistent))
	})

	// 4) prioritized tasks under the strategy
	s.budget.BeginPhase(frame.PhaseTasks)
	strategy := s.Strategy()
	rep.Tasks = s.queue.ExecuteAll(ctx, func(p Priority) bool { return strategy(p, s) })
	s.budget.EndPhase(frame.PhaseTasks)
	tasksErr := ctx.Err()
	if rep.Tasks.Err != nil {
		s.log.WithField("frame", number).WithError(rep.Tasks.Err).Warn("task failed")
	}

	// 5) build, layout, paint
	rep.Outcome = pipeline.Completed
	if s.pipeline != nil {
		rep.Pipeline = s.pipeline.RunFrame(ctx, s.budget)
		rep.Outcome = rep.Pipeline.Outcome
	}
	if rep.Outcome == pipeline.Completed && tasksErr != nil {
		rep.Outcome = pipeline.Cancelled
		if errors.Is(tasksErr, context.DeadlineExceeded) {
			rep.Outcome = pipeline.Timeout
		}
	}
	switch rep.Outcome {
	case pipeline.Timeout:
		rep.Err = &pipeline.TimeoutError{Deadline: deadline}
		if deadline == 0 && rep.Pipeline.Err != nil {
			// the caller's own deadline fired
			rep.Err = rep.Pipeline.Err
		}
	case pipeline.Cancelled:
		rep.Err = pipeline.ErrCancelled
	}

	// 6) post-frame callbacks
	s.setPhase(PhasePostFrameCallbacks)
	rep.PostFrame = s.measure(frame.PhasePostFrame, func() int {
		return s.postFrame.run(timing.WithPhase(frame.PhasePostFrame))
	})

	// 7) completion waiters
	s.resolveWaiters(timing.WithPhase(frame.PhasePostFrame))

	// 8) statistics
	rep.Stats = s.budget.Stats()
	rep.Elapsed = time.Since(start)
	rep.Janky = frame.IsJanky(rep.Elapsed, s.budget.Target())
	s.history.record(rep.Elapsed, rep.Janky)
	s.lastFrame.Store(time.Now().UnixNano())

	// deferred tasks and dirty nodes left behind need another frame
	if !s.queue.IsEmpty() || s.pipelinePending() {
		s.scheduled.Store(true)
	}

	s.report(rep)
	return rep
}

// enter claims the frame for the calling goroutine.
func (s *Scheduler) enter() {
	gid := goid.Get()
	if !s.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseTransientCallbacks)) {
		if s.owner.Load() == gid {
			panic(ErrReentrantFrame)
		}
		panic(ErrConcurrentFrame)
	}
	s.owner.Store(gid)
}

func (s *Scheduler) leave() {
	s.owner.Store(0)
	s.phase.Store(int32(PhaseIdle))
}

func (s *Scheduler) setPhase(p SchedulerPhase) {
	s.phase.Store(int32(p))
}

func (s *Scheduler) measure(p frame.Phase, fn func() int) int {
	s.budget.BeginPhase(p)
	defer s.budget.EndPhase(p)
	return fn()
}

func (s *Scheduler) report(rep FrameReport) {
	ev := StatusEvent{
		Kind:      StatusFrame,
		Frame:     rep.Number,
		Elapsed:   rep.Elapsed,
		TasksRun:  rep.Tasks.Ran,
		Deferred:  rep.Tasks.Deferred,
		Processed: rep.Pipeline.Processed(),
	}
	switch rep.Outcome {
	case pipeline.Timeout:
		ev.Kind, ev.Detail = StatusTimeout, rep.Err.Error()
	case pipeline.Cancelled:
		ev.Kind, ev.Detail = StatusCancel, rep.Err.Error()
	default:
		if rep.Janky {
			ev.Kind, ev.Detail = StatusJank, "frame over budget"
		}
	}
	s.emit(ev)
}

// ---- frame requests ----

// ScheduleFrame asks the host loop for a frame on the next tick.
func (s *Scheduler) ScheduleFrame() {
	s.scheduled.Store(true)
}

// ensureVisualUpdate requests a frame for pipeline work. Marks made before the
// post-frame callbacks are drained by the running frame and request nothing;
// whatever such a frame leaves dirty is picked up when it ends.
func (s *Scheduler) ensureVisualUpdate() {
	switch SchedulerPhase(s.phase.Load()) {
	case PhaseIdle, PhasePostFrameCallbacks:
		s.ScheduleFrame()
	}
}

func (s *Scheduler) pipelinePending() bool {
	p, ok := s.pipeline.(pendingReporter)
	return ok && p.HasPendingWork()
}

// IsFrameScheduled reports whether a frame has been requested since the last one ran.
func (s *Scheduler) IsFrameScheduled() bool {
	return s.scheduled.Load()
}

// ScheduleWarmUpFrame runs one frame immediately, once per scheduler, so the
// first real frame does not pay for cold caches. Later calls and calls made
// during a frame do nothing and report false.
func (s *Scheduler) ScheduleWarmUpFrame() (FrameReport, bool) {
	if SchedulerPhase(s.phase.Load()).InFrame() {
		return FrameReport{}, false
	}
	if !s.warmedUp.CompareAndSwap(false, true) {
		return FrameReport{}, false
	}
	return s.ExecuteFrame(), true
}

// ---- tasks ----

// AddTask queues fn at priority p and requests a frame.
func (s *Scheduler) AddTask(p Priority, fn func(ctx context.Context) error) TaskID {
	id := s.queue.Add(p, fn)
	s.ScheduleFrame()
	return id
}

// CancelTask removes a queued task.
func (s *Scheduler) CancelTask(id TaskID) bool {
	return s.queue.Cancel(id)
}

// Queue exposes the task queue.
func (s *Scheduler) Queue() *TaskQueue { return s.queue }

// ScheduleMicrotask queues fn for the microtask flush of the next frame.
func (s *Scheduler) ScheduleMicrotask(fn func()) {
	s.microMu.Lock()
	s.microtasks = append(s.microtasks, fn)
	s.microMu.Unlock()
	s.ScheduleFrame()
}

func (s *Scheduler) flushMicrotasks() int {
	n := 0
	for {
		s.microMu.Lock()
		batch := s.microtasks
		s.microtasks = nil
		s.microMu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// ---- callbacks ----

func (s *Scheduler) nextCallbackID() CallbackID {
	return CallbackID(s.callbackID.Add(1))
}

// ScheduleFrameCallback runs cb once at the start of the next frame and
// requests that frame.
func (s *Scheduler) ScheduleFrameCallback(cb FrameCallback) CallbackID {
	id := s.nextCallbackID()
	s.transient.add(id, cb)
	s.ScheduleFrame()
	return id
}

// CancelFrameCallback stops a transient callback from firing. It reports
// false once the callback has fired or was never registered.
func (s *Scheduler) CancelFrameCallback(id CallbackID) bool {
	return s.transient.cancel(id)
}

// AddPersistentFrameCallback runs cb in every frame until removed. It does
// not request a frame by itself.
func (s *Scheduler) AddPersistentFrameCallback(cb FrameCallback) CallbackID {
	id := s.nextCallbackID()
	s.persistent.add(id, cb)
	return id
}

// RemovePersistentFrameCallback unregisters a persistent callback.
func (s *Scheduler) RemovePersistentFrameCallback(id CallbackID) bool {
	return s.persistent.remove(id)
}

// AddPostFrameCallback runs cb once after the paint of the next frame.
func (s *Scheduler) AddPostFrameCallback(cb FrameCallback) CallbackID {
	id := s.nextCallbackID()
	s.postFrame.add(id, cb)
	return id
}

// CancelPostFrameCallback stops a post-frame callback from firing.
func (s *Scheduler) CancelPostFrameCallback(id CallbackID) bool {
	return s.postFrame.cancel(id)
}

// TransientCallbackCount returns how many transient callbacks wait for the next frame.
func (s *Scheduler) TransientCallbackCount() int { return s.transient.size() }

// PersistentCallbackCount returns how many persistent callbacks are registered.
func (s *Scheduler) PersistentCallbackCount() int { return s.persistent.size() }

// EndOfFrame returns a completion that resolves after the next frame's
// post-frame callbacks. Called during a frame, that frame is the one awaited.
func (s *Scheduler) EndOfFrame() *FrameCompletion {
	c := newFrameCompletion()
	s.waitMu.Lock()
	s.waiters = append(s.waiters, c)
	s.waitMu.Unlock()
	if !SchedulerPhase(s.phase.Load()).InFrame() {
		s.ScheduleFrame()
	}
	return c
}

func (s *Scheduler) resolveWaiters(t frame.Timing) {
	s.waitMu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.waitMu.Unlock()

	for _, c := range waiters {
		c.resolve(t)
	}
}

// ---- queries ----

// Phase returns where the scheduler is within the current frame.
func (s *Scheduler) Phase() SchedulerPhase {
	return SchedulerPhase(s.phase.Load())
}

// FrameCount returns how many frames have started.
func (s *Scheduler) FrameCount() uint64 {
	return s.clock.FrameCount()
}

// TargetFPS returns the configured frame rate.
func (s *Scheduler) TargetFPS() int {
	return int(frame.FPS(s.budget.Target()) + 0.5)
}

// SetTargetFPS changes the frame budget for subsequent checks.
func (s *Scheduler) SetTargetFPS(fps int) {
	s.budget.SetTargetFPS(fps)
}

// IsOverBudget reports whether the current frame has used its allowance.
func (s *Scheduler) IsOverBudget() bool {
	return s.budget.IsOverBudget()
}

// Budget exposes the frame budget tracker.
func (s *Scheduler) Budget() *frame.Budget { return s.budget }

// Clock exposes the frame clock.
func (s *Scheduler) Clock() *FrameClock { return s.clock }

// Config returns the configuration the scheduler was built with.
func (s *Scheduler) Config() Config { return s.cfg }

// Strategy returns the active scheduling strategy.
func (s *Scheduler) Strategy() SchedulingStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// SetStrategy replaces the scheduling strategy; nil restores DefaultStrategy.
func (s *Scheduler) SetStrategy(fn SchedulingStrategy) {
	if fn == nil {
		fn = DefaultStrategy
	}
	s.mu.Lock()
	s.strategy = fn
	s.mu.Unlock()
}

// Policy returns the active budget policy.
func (s *Scheduler) Policy() BudgetPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetPolicy replaces the budget policy.
func (s *Scheduler) SetPolicy(p BudgetPolicy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// ---- jank statistics ----

// AvgFrameTime is the mean duration over the recent frame window.
func (s *Scheduler) AvgFrameTime() time.Duration {
	avg, _, _ := s.history.stats(s.budget.Target())
	return avg
}

// AvgFPS is the frame rate implied by AvgFrameTime.
func (s *Scheduler) AvgFPS() float64 {
	return frame.FPS(s.AvgFrameTime())
}

// JankyFrameCount counts over-budget frames since creation or ResetStats.
func (s *Scheduler) JankyFrameCount() uint64 {
	_, janky := s.history.lifetime()
	return janky
}

// JankRate is the share of janky frames in the recent window, in percent.
func (s *Scheduler) JankRate() float64 {
	_, janky, n := s.history.stats(s.budget.Target())
	if n == 0 {
		return 0
	}
	return float64(janky) / float64(n) * 100
}

// ResetStats clears the jank history and the skip counter.
func (s *Scheduler) ResetStats() {
	s.history.reset()
	s.skipped.Store(0)
}

// ---- frame skipping ----

func (s *Scheduler) FrameSkipPolicy() FrameSkipPolicy {
	return FrameSkipPolicy(s.skipMode.Load())
}

func (s *Scheduler) SetFrameSkipPolicy(p FrameSkipPolicy) {
	s.skipMode.Store(int32(p))
}

func (s *Scheduler) MaxFrameSkip() int { return int(s.maxSkip.Load()) }

func (s *Scheduler) SetMaxFrameSkip(n int) { s.maxSkip.Store(int32(max(n, 0))) }

// SkippedFrameCount counts frames dropped by the skip policy.
func (s *Scheduler) SkippedFrameCount() uint64 {
	return s.skipped.Load()
}

// SkipRate is the share of skipped frames among all frames, in percent.
func (s *Scheduler) SkipRate() float64 {
	skipped := s.SkippedFrameCount()
	total := s.FrameCount() + skipped
	if total == 0 {
		return 0
	}
	return float64(skipped) / float64(total) * 100
}

// ShouldSkipFrames returns how many frames the skip policy would drop now.
func (s *Scheduler) ShouldSkipFrames() int {
	last := s.lastFrame.Load()
	if last == 0 {
		return 0
	}
	elapsed := time.Since(time.Unix(0, last))
	return s.FrameSkipPolicy().FramesToSkip(elapsed, s.budget.Target(), s.MaxFrameSkip())
}

// checkAndSkip records a skip when the policy asks for one. The skip restarts
// the measurement, so the following tick renders.
func (s *Scheduler) checkAndSkip() int {
	n := s.ShouldSkipFrames()
	if n == 0 {
		return 0
	}
	s.skipped.Add(uint64(n))
	s.lastFrame.Store(time.Now().UnixNano())
	return n
}

// ---- host loop ----

// HandleTick is one vsync: it runs a frame when one is requested, the app is
// rendering and the skip policy does not drop it.
func (s *Scheduler) HandleTick(ctx context.Context) (FrameReport, bool) {
	s.emit(StatusEvent{Kind: StatusTick, Frame: s.FrameCount()})

	if !s.ShouldScheduleFrame() || !s.IsFrameScheduled() {
		// idle ticks are not lateness
		s.lastFrame.Store(0)
		return FrameReport{}, false
	}
	if n := s.checkAndSkip(); n > 0 {
		s.emit(StatusEvent{Kind: StatusSkip, Frame: s.FrameCount(), Skipped: uint64(n), Detail: "frames skipped"})
		return FrameReport{}, false
	}
	return s.ExecuteFrameContext(ctx), true
}

// Run drives frames from clock until ctx is done or the clock stops.
// It closes the CSV log on return.
func (s *Scheduler) Run(ctx context.Context, clock *TickClock) error {
	defer func() {
		if err := s.Close(); err != nil {
			s.log.WithError(err).Error("closing csv log")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-clock.Ch:
			if !ok {
				return nil
			}
			s.HandleTick(ctx)
		}
	}
}
