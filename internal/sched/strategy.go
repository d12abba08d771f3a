// internal/sched/strategy.go

package sched

import (
	"fmt"
	"strings"
)

// SchedulingStrategy decides whether a task of priority p may run now.
type SchedulingStrategy func(p Priority, s *Scheduler) bool

// DefaultStrategy runs everything while the frame is within budget. Once over
// budget it defers to the scheduler's BudgetPolicy.
func DefaultStrategy(p Priority, s *Scheduler) bool {
	if !s.IsOverBudget() {
		return true
	}
	return s.Policy().AllowWhenOverBudget(p)
}

// BudgetPolicy says which priorities still run once a frame is over budget.
type BudgetPolicy interface {
	Name() string
	AllowWhenOverBudget(p Priority) bool
}

// DeferLowPriority keeps Animation and UserInput running and defers Build and Idle.
type DeferLowPriority struct{}

func (DeferLowPriority) Name() string { return "defer_low" }

func (DeferLowPriority) AllowWhenOverBudget(p Priority) bool {
	return p >= Animation
}

// Lenient never defers.
type Lenient struct{}

func (Lenient) Name() string                      { return "lenient" }
func (Lenient) AllowWhenOverBudget(Priority) bool { return true }

// Strict only lets UserInput through once over budget.
type Strict struct{}

func (Strict) Name() string { return "strict" }

func (Strict) AllowWhenOverBudget(p Priority) bool {
	return p == UserInput
}

// PolicyByName resolves a config value. Empty selects DeferLowPriority.
func PolicyByName(name string) (BudgetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "defer_low":
		return DeferLowPriority{}, nil
	case "lenient":
		return Lenient{}, nil
	case "strict":
		return Strict{}, nil
	default:
		return nil, fmt.Errorf("unknown budget policy %q", name)
	}
}
