// internal/sched/task.go

package sched

import "context"

// TaskID uniquely identifies a queued task.
type TaskID uint64

// Task represents one unit of prioritized frame work.
type Task struct {
	ID       TaskID
	Priority Priority
	Seq      uint64                          // enqueue order, breaks ties within a priority
	Run      func(ctx context.Context) error // work function; ctx carries the frame deadline
}

// NewTask creates a task with its priority clamped to the legal range.
// NOTE: Seq is assigned when the task is queued.
func NewTask(id TaskID, priority Priority, work func(ctx context.Context) error) *Task {
	if priority > MaxPriority {
		priority = MaxPriority
	}
	return &Task{
		ID:       id,
		Priority: priority,
		Run:      work,
	}
}
