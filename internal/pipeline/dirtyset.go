// internal/pipeline/dirtyset.go

package pipeline

import (
	"math/bits"
	"slices"
	"sync"
	"sync/atomic"
)

// NodeID identifies a tree node. Zero is never a valid id.
type NodeID uint64

// DefaultDirtyCapacity is the bitmap size used when none is configured.
const DefaultDirtyCapacity = 4096

// DirtySet is a lock-free set of node ids waiting for one pipeline phase.
//
// Ids 1..capacity map to bits of an atomic bitmap; larger ids spill into a
// sync.Map. Any goroutine may mark; Drain is meant for the single frame
// goroutine. Go's sync/atomic operations are sequentially consistent, so a
// mark made before Drain observes the word is always returned by that Drain or
// by the next one.
type DirtySet struct {
	words    []atomic.Uint64
	capacity uint64

	overflow sync.Map // NodeID -> struct{}
	all      atomic.Bool
}

// Batch is what one Drain returns.
type Batch struct {
	IDs []NodeID // ascending
	All bool     // every node in the tree must be visited
}

// Empty reports whether the batch carries no work.
func (b Batch) Empty() bool {
	return !b.All && len(b.IDs) == 0
}

// NewDirtySet creates a set whose bitmap covers ids up to capacity.
func NewDirtySet(capacity int) *DirtySet {
	if capacity <= 0 {
		capacity = DefaultDirtyCapacity
	}
	return &DirtySet{
		words:    make([]atomic.Uint64, (capacity+63)/64),
		capacity: uint64(capacity),
	}
}

// Capacity returns the bitmap size.
func (s *DirtySet) Capacity() int { return int(s.capacity) }

// MarkDirty adds id and reports whether it was not already marked.
func (s *DirtySet) MarkDirty(id NodeID) bool {
	if id == 0 {
		return false
	}
	if uint64(id) <= s.capacity {
		word, mask := s.slot(id)
		return s.words[word].Or(mask)&mask == 0
	}
	_, loaded := s.overflow.LoadOrStore(id, struct{}{})
	return !loaded
}

// MarkAllDirty flags a global invalidation (theme, locale). The next Drain
// reports All and the consumer walks the whole tree.
func (s *DirtySet) MarkAllDirty() {
	s.all.Store(true)
}

// Clear removes id without draining the rest.
func (s *DirtySet) Clear(id NodeID) {
	if id == 0 {
		return
	}
	if uint64(id) <= s.capacity {
		word, mask := s.slot(id)
		s.words[word].And(^mask)
		return
	}
	s.overflow.Delete(id)
}

// IsDirty reports whether id is currently marked, individually or through MarkAllDirty.
func (s *DirtySet) IsDirty(id NodeID) bool {
	if id == 0 {
		return false
	}
	if s.all.Load() {
		return true
	}
	if uint64(id) <= s.capacity {
		word, mask := s.slot(id)
		return s.words[word].Load()&mask != 0
	}
	_, ok := s.overflow.Load(id)
	return ok
}

// IsAllDirty reports whether a global invalidation is pending.
func (s *DirtySet) IsAllDirty() bool {
	return s.all.Load()
}

// HasDirty reports whether any work is pending.
func (s *DirtySet) HasDirty() bool {
	if s.all.Load() {
		return true
	}
	for i := range s.words {
		if s.words[i].Load() != 0 {
			return true
		}
	}
	found := false
	s.overflow.Range(func(_, _ any) bool {
		found = true
		return false
	})
	return found
}

// Len counts individually marked ids. A pending MarkAllDirty is not counted.
func (s *DirtySet) Len() int {
	n := 0
	for i := range s.words {
		n += bits.OnesCount64(s.words[i].Load())
	}
	s.overflow.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Drain empties the set and returns what it held. Each word is swapped to
// zero in one step, so an id is either returned here or stays marked for the
// next Drain, never both.
func (s *DirtySet) Drain() Batch {
	b := Batch{All: s.all.Swap(false)}
	for i := range s.words {
		word := s.words[i].Swap(0)
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			word &^= 1 << bit
			b.IDs = append(b.IDs, NodeID(uint64(i)*64+uint64(bit)+1))
		}
	}
	var spilled []NodeID
	s.overflow.Range(func(key, _ any) bool {
		if _, ok := s.overflow.LoadAndDelete(key); ok {
			spilled = append(spilled, key.(NodeID))
		}
		return true
	})
	if len(spilled) > 0 {
		slices.Sort(spilled)
		b.IDs = append(b.IDs, spilled...)
	}
	return b
}

// Reset drops everything, including a pending MarkAllDirty.
func (s *DirtySet) Reset() {
	s.Drain()
}

func (s *DirtySet) slot(id NodeID) (int, uint64) {
	index := uint64(id) - 1
	return int(index / 64), 1 << (index % 64)
}
