// internal/lifecycle/element.go

package lifecycle

// ElementState is the mount state of a tree element.
type ElementState uint8

const (
	Initial ElementState = iota
	Active
	Inactive
	Defunct
)

func (s ElementState) String() string {
	switch s {
	case Initial:
		return "Initial"
	case Active:
		return "Active"
	case Inactive:
		return "Inactive"
	case Defunct:
		return "Defunct"
	default:
		return "Unknown"
	}
}

// Element is the lifecycle of one tree element. States only move toward
// Defunct, with Active and Inactive allowed to alternate.
type Element struct {
	state ElementState
}

func NewElement() *Element { return &Element{} }

func (e *Element) State() ElementState { return e.state }

// CanBuild reports whether the element may be rebuilt.
func (e *Element) CanBuild() bool { return e.state == Active }

func (e *Element) IsDefunct() bool { return e.state == Defunct }

// Mount activates a fresh element.
func (e *Element) Mount() {
	e.transition(Initial, Active, "mount")
}

// Deactivate takes an active element out of the tree, keeping it reusable.
func (e *Element) Deactivate() {
	e.transition(Active, Inactive, "deactivate")
}

// Activate reinserts an inactive element.
func (e *Element) Activate() {
	e.transition(Inactive, Active, "activate")
}

// Unmount retires an inactive element for good.
func (e *Element) Unmount() {
	e.transition(Inactive, Defunct, "unmount")
}

func (e *Element) transition(from, to ElementState, op string) {
	if e.state != from {
		violation("%s: element is %s, want %s", op, e.state, from)
		return
	}
	e.state = to
}
