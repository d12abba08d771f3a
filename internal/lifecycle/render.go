// internal/lifecycle/render.go

package lifecycle

// RenderState is the phase a render node is in.
type RenderState uint8

const (
	Detached RenderState = iota
	Attached
	NeedsLayout
	LaidOut
	NeedsPaint
	Painted
)

func (s RenderState) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Attached:
		return "Attached"
	case NeedsLayout:
		return "NeedsLayout"
	case LaidOut:
		return "LaidOut"
	case NeedsPaint:
		return "NeedsPaint"
	case Painted:
		return "Painted"
	default:
		return "Unknown"
	}
}

// Render is the lifecycle of one render node.
//
// All predicates derive from the single state value; there are no separate
// dirty flags that could drift apart from it. A Render is mutated only by the
// frame goroutine.
type Render struct {
	state    RenderState
	protocol Protocol
	arity    Arity
}

// NewRender creates a detached render lifecycle. Unknown arities are a
// programming error and fall back to Variable.
func NewRender(protocol Protocol, arity Arity) *Render {
	if !arity.Valid() {
		violation("invalid arity %d", int(arity))
		arity = Variable
	}
	if protocol != Box && protocol != Sliver {
		violation("invalid protocol %d", int(protocol))
		protocol = Box
	}
	return &Render{protocol: protocol, arity: arity}
}

func (r *Render) State() RenderState { return r.state }
func (r *Render) Protocol() Protocol { return r.protocol }
func (r *Render) Arity() Arity       { return r.arity }

func (r *Render) IsAttached() bool { return r.state != Detached }

// NeedsLayout reports whether the node waits for (re)layout.
func (r *Render) NeedsLayout() bool {
	return r.state == Attached || r.state == NeedsLayout
}

// NeedsPaint reports whether the node waits for paint. A node that needs
// layout also needs paint.
func (r *Render) NeedsPaint() bool {
	return r.state == LaidOut || r.state == NeedsPaint || r.NeedsLayout()
}

// IsLaidOut reports whether the node holds valid geometry.
func (r *Render) IsLaidOut() bool {
	return r.state == LaidOut || r.state == NeedsPaint || r.state == Painted
}

func (r *Render) IsPainted() bool { return r.state == Painted }
func (r *Render) IsClean() bool   { return r.state == Painted }

// Attach moves a detached node into the tree; it then needs layout.
func (r *Render) Attach() {
	if r.state != Detached {
		violation("attach: already attached (state %s)", r.state)
		return
	}
	r.state = Attached
}

// Detach removes the node from the tree from any state.
func (r *Render) Detach() {
	r.state = Detached
}

// MarkNeedsLayout invalidates geometry. Ignored while detached.
func (r *Render) MarkNeedsLayout() {
	if r.state == Detached {
		return
	}
	r.state = NeedsLayout
}

// MarkLaidOut records a completed layout.
func (r *Render) MarkLaidOut() {
	if r.state == Detached {
		violation("mark laid out: not attached")
		return
	}
	r.state = LaidOut
}

// MarkNeedsPaint invalidates paint without touching layout validity.
// Nodes that still need layout already need paint and are left alone.
func (r *Render) MarkNeedsPaint() {
	if !r.IsLaidOut() {
		return
	}
	r.state = NeedsPaint
}

// MarkPainted records a completed paint. Painting before layout is illegal.
func (r *Render) MarkPainted() {
	if !r.IsLaidOut() {
		violation("mark painted: not laid out (state %s)", r.state)
		return
	}
	r.state = Painted
}
