// internal/sched/queue.go

package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// TaskQueue is a priority queue of tasks, FIFO within one priority.
// Any goroutine may add or cancel; execution happens on the frame goroutine.
type TaskQueue struct {
	mu     sync.Mutex          // protects everything below
	rbt    *redblacktree.Tree  // ordered by priority desc, then seq asc
	byID   map[TaskID]queueKey // queued and deferred tasks, used by Cancel
	nextID TaskID
	seq    uint64
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		rbt:  redblacktree.NewWith(byPriority),
		byID: make(map[TaskID]queueKey),
	}
}

// Add enqueues fn and returns its id. It always succeeds.
func (q *TaskQueue) Add(priority Priority, fn func(ctx context.Context) error) TaskID {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	t := NewTask(q.nextID, priority, fn)
	q.put(t)
	return t.ID
}

// Push enqueues an already built task. Its Seq is reassigned. Tasks with an
// unknown priority are rejected.
func (q *TaskQueue) Push(t *Task) error {
	if !t.Priority.Valid() {
		return fmt.Errorf("task %d: invalid priority %d", t.ID, int(t.Priority))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.byID[t.ID]; dup {
		return fmt.Errorf("task %d already queued", t.ID)
	}
	if t.ID > q.nextID {
		q.nextID = t.ID
	}
	q.put(t)
	return nil
}

// put requires q.mu.
func (q *TaskQueue) put(t *Task) {
	q.seq++
	t.Seq = q.seq
	key := queueKey{priority: t.Priority, seq: t.Seq}
	q.rbt.Put(key, t)
	q.byID[t.ID] = key
}

// Pop removes and returns the highest priority task.
func (q *TaskQueue) Pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *TaskQueue) popLocked() (*Task, bool) {
	node := q.rbt.Left()
	if node == nil {
		return nil, false
	}
	t := node.Value.(*Task)
	q.rbt.Remove(node.Key)
	delete(q.byID, t.ID)
	return t, true
}

// PeekPriority returns the priority of the next task.
func (q *TaskQueue) PeekPriority() (Priority, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	node := q.rbt.Left()
	if node == nil {
		return 0, false
	}
	return node.Key.(queueKey).priority, true
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rbt.Size()
}

func (q *TaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Cancel removes a queued task. It reports false when the task already ran
// or was never queued.
func (q *TaskQueue) Cancel(id TaskID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	key, ok := q.byID[id]
	if !ok {
		return false
	}
	q.rbt.Remove(key)
	delete(q.byID, id)
	return true
}

// Clear drops every queued task.
func (q *TaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rbt.Clear()
	clear(q.byID)
}

// CountByPriority reports how many tasks wait at each priority.
func (q *TaskQueue) CountByPriority() PriorityCount {
	q.mu.Lock()
	defer q.mu.Unlock()

	var c PriorityCount
	for _, k := range q.rbt.Keys() {
		c[k.(queueKey).priority]++
	}
	return c
}

// ExecResult summarizes one execution pass over the queue.
type ExecResult struct {
	Ran      int
	Deferred int   // tasks left queued because admit refused them
	Err      error // joined task errors
}

// ExecuteAll runs tasks in priority order until the queue holds nothing
// admit accepts. The head is re-read after every task, so work queued by a
// running task is picked up in the same pass when it is admitted. Refused
// tasks keep their place for the next call. A done ctx stops the pass.
func (q *TaskQueue) ExecuteAll(ctx context.Context, admit func(Priority) bool) ExecResult {
	var res ExecResult
	var deferred []*Task
	var errs []error

	for ctx.Err() == nil {
		q.mu.Lock()
		t, ok := q.popLocked()
		q.mu.Unlock()
		if !ok {
			break
		}
		if admit != nil && !admit(t.Priority) {
			// keep it cancellable while it is out of the tree
			q.mu.Lock()
			q.byID[t.ID] = queueKey{priority: t.Priority, seq: t.Seq}
			q.mu.Unlock()
			deferred = append(deferred, t)
			continue
		}

		res.Ran++
		if t.Run == nil {
			continue
		}
		if err := t.Run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task %d (%s): %w", t.ID, t.Priority, err))
		}
	}

	res.Deferred = q.restore(deferred)
	res.Err = errors.Join(errs...)
	return res
}

// ExecuteUntil runs every task at or above floor.
func (q *TaskQueue) ExecuteUntil(ctx context.Context, floor Priority) ExecResult {
	return q.ExecuteAll(ctx, func(p Priority) bool { return p >= floor })
}

// ExecutePriority runs only the tasks queued at exactly p.
func (q *TaskQueue) ExecutePriority(ctx context.Context, p Priority) ExecResult {
	return q.ExecuteAll(ctx, func(other Priority) bool { return other == p })
}

// restore puts deferred tasks back under their original keys, so they keep
// their FIFO position. Tasks cancelled meanwhile stay out.
func (q *TaskQueue) restore(tasks []*Task) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, t := range tasks {
		key, ok := q.byID[t.ID]
		if !ok {
			continue
		}
		q.rbt.Put(key, t)
		n++
	}
	return n
}

// queueKey is used as a key in the red-black tree.
type queueKey struct {
	priority Priority
	seq      uint64
}

// byPriority puts the highest priority first and the oldest task first
// within a priority.
func byPriority(a, b any) int {
	ka, kb := a.(queueKey), b.(queueKey)
	switch {
	case ka.priority > kb.priority:
		return -1
	case ka.priority < kb.priority:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
