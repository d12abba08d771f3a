// internal/sched/priority.go

package sched

// Priority orders queued tasks. Higher values dequeue first.
type Priority uint8

const (
	Idle Priority = iota
	Build
	Animation
	UserInput

	MinPriority = Idle
	MaxPriority = UserInput
)

// AllPriorities lists every priority from lowest to highest.
var AllPriorities = [...]Priority{Idle, Build, Animation, UserInput}

func (p Priority) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Build:
		return "Build"
	case Animation:
		return "Animation"
	case UserInput:
		return "UserInput"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p <= MaxPriority
}

// Higher returns the next priority up, saturating at UserInput.
func (p Priority) Higher() Priority {
	if p >= MaxPriority {
		return MaxPriority
	}
	return p + 1
}

// Lower returns the next priority down, saturating at Idle.
func (p Priority) Lower() Priority {
	if p == MinPriority || !p.Valid() {
		return MinPriority
	}
	return p - 1
}

// PriorityCount holds one counter per priority.
type PriorityCount [len(AllPriorities)]int

// Of returns the count for p.
func (c PriorityCount) Of(p Priority) int {
	if !p.Valid() {
		return 0
	}
	return c[p]
}

// Total sums all priorities.
func (c PriorityCount) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
