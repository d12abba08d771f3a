package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirtySet(t *testing.T) {
	t.Run("mark is idempotent", func(t *testing.T) {
		s := NewDirtySet(128)
		assert.True(t, s.MarkDirty(5))
		assert.False(t, s.MarkDirty(5))
		assert.Equal(t, 1, s.Len())
		assert.Equal(t, []NodeID{5}, s.Drain().IDs)
	})

	t.Run("drain empties the set", func(t *testing.T) {
		s := NewDirtySet(128)
		s.MarkDirty(64)
		s.MarkDirty(1)
		s.MarkDirty(65)
		b := s.Drain()
		assert.Equal(t, []NodeID{1, 64, 65}, b.IDs)
		assert.False(t, b.All)
		assert.False(t, s.HasDirty())
		assert.True(t, s.Drain().Empty())
	})

	t.Run("zero id is never marked", func(t *testing.T) {
		s := NewDirtySet(8)
		assert.False(t, s.MarkDirty(0))
		assert.False(t, s.IsDirty(0))
		assert.False(t, s.HasDirty())
	})

	t.Run("ids above capacity spill over", func(t *testing.T) {
		s := NewDirtySet(64)
		assert.True(t, s.MarkDirty(1000))
		assert.False(t, s.MarkDirty(1000))
		s.MarkDirty(70)
		s.MarkDirty(3)
		assert.True(t, s.IsDirty(1000))
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, []NodeID{3, 70, 1000}, s.Drain().IDs)
		assert.False(t, s.HasDirty())
	})

	t.Run("clear removes one id", func(t *testing.T) {
		s := NewDirtySet(64)
		s.MarkDirty(2)
		s.MarkDirty(3)
		s.MarkDirty(500)
		s.Clear(2)
		s.Clear(500)
		assert.False(t, s.IsDirty(2))
		assert.True(t, s.IsDirty(3))
		assert.Equal(t, []NodeID{3}, s.Drain().IDs)
	})

	t.Run("mark all", func(t *testing.T) {
		s := NewDirtySet(64)
		s.MarkAllDirty()
		assert.True(t, s.HasDirty())
		assert.True(t, s.IsDirty(42))
		assert.Equal(t, 0, s.Len())
		b := s.Drain()
		assert.True(t, b.All)
		assert.False(t, b.Empty())
		assert.False(t, s.IsAllDirty())
	})

	t.Run("default capacity", func(t *testing.T) {
		assert.Equal(t, DefaultDirtyCapacity, NewDirtySet(0).Capacity())
	})
}

func TestDirtySetConcurrentMarks(t *testing.T) {
	s := NewDirtySet(256)
	const writers = 16
	const perWriter = 40

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				// writers overlap on purpose
				s.MarkDirty(NodeID((w*perWriter+i)%300 + 1))
			}
		}(w)
	}

	var drained []NodeID
	var mu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			b := s.Drain()
			mu.Lock()
			drained = append(drained, b.IDs...)
			mu.Unlock()
		}
	}()
	wg.Wait()
	drained = append(drained, s.Drain().IDs...)

	seen := make(map[NodeID]bool)
	for _, id := range drained {
		seen[id] = true
	}
	require.Len(t, seen, 300)
	assert.False(t, s.HasDirty())
}
