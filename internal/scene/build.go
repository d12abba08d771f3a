// internal/scene/build.go

package scene

import (
	"fmt"

	"framesched/internal/lifecycle"
	"framesched/internal/pipeline"
)

// Grid builds a root column holding rows of leaf cells. Every other row is a
// sliver list so both layout protocols are exercised.
func (s *Scene) Grid(rows, cols int) (pipeline.NodeID, error) {
	root, err := s.AddRoot("column", lifecycle.Box, lifecycle.Variable)
	if err != nil {
		return 0, err
	}
	for r := 0; r < rows; r++ {
		protocol := lifecycle.Box
		if r%2 == 1 {
			protocol = lifecycle.Sliver
		}
		row, err := s.Add(root, fmt.Sprintf("row-%d", r), protocol, lifecycle.Variable)
		if err != nil {
			return 0, err
		}
		for c := 0; c < cols; c++ {
			if _, err := s.Add(row, fmt.Sprintf("cell-%d-%d", r, c), lifecycle.Box, lifecycle.Leaf); err != nil {
				return 0, err
			}
		}
	}
	return root, nil
}

// IDs returns every node id in ascending order.
func (s *Scene) IDs() []pipeline.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]pipeline.NodeID, 0, len(s.nodes))
	for id := pipeline.NodeID(1); id <= s.next; id++ {
		if _, ok := s.nodes[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
