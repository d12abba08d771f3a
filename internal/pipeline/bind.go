// internal/pipeline/bind.go

package pipeline

import "context"

// Bound pairs a coordinator with the tree it drives, which is the shape the
// scheduler expects from its pipeline.
type Bound struct {
	*Coordinator
	Tree Tree
}

// Bind ties coord to tree.
func Bind(coord *Coordinator, tree Tree) *Bound {
	return &Bound{Coordinator: coord, Tree: tree}
}

// RunFrame runs one frame over the bound tree.
func (b *Bound) RunFrame(ctx context.Context, obs PhaseObserver) FrameResult {
	return b.Coordinator.RunFrameObserved(ctx, b.Tree, obs)
}
