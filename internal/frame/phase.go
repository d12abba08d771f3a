// internal/frame/phase.go

package frame

// Phase names one measured slice of a frame.
type Phase int

const (
	PhaseAnimate    Phase = iota // transient callbacks
	PhaseMicrotasks              // mid-frame microtask flush
	PhasePersistent              // persistent callbacks
	PhaseTasks                   // prioritized task queue
	PhaseBuild
	PhaseLayout
	PhasePaint
	PhasePostFrame

	numPhases
)

// AllPhases lists every phase in execution order.
var AllPhases = [numPhases]Phase{
	PhaseAnimate,
	PhaseMicrotasks,
	PhasePersistent,
	PhaseTasks,
	PhaseBuild,
	PhaseLayout,
	PhasePaint,
	PhasePostFrame,
}

func (p Phase) String() string {
	switch p {
	case PhaseAnimate:
		return "Animate"
	case PhaseMicrotasks:
		return "Microtasks"
	case PhasePersistent:
		return "Persistent"
	case PhaseTasks:
		return "Tasks"
	case PhaseBuild:
		return "Build"
	case PhaseLayout:
		return "Layout"
	case PhasePaint:
		return "Paint"
	case PhasePostFrame:
		return "PostFrame"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p >= 0 && p < numPhases
}

// IsPipeline reports whether p is one of Build, Layout or Paint.
func (p Phase) IsPipeline() bool {
	return p == PhaseBuild || p == PhaseLayout || p == PhasePaint
}
