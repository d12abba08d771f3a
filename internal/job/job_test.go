package job

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"framesched/internal/sched"
)

func TestSleepWork(t *testing.T) {
	t.Run("finishes", func(t *testing.T) {
		assert.NoError(t, SleepWork(time.Millisecond)(context.Background()))
	})

	t.Run("stops at the deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, SleepWork(time.Minute)(ctx), context.DeadlineExceeded)
	})
}

func TestSpinWork(t *testing.T) {
	start := time.Now()
	assert.NoError(t, SpinWork(2*time.Millisecond)(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SpinWork(time.Minute)(ctx), context.Canceled)
}

func TestLoad(t *testing.T) {
	a := NewLoad(8, time.Millisecond, 42)
	b := NewLoad(8, time.Millisecond, 42)
	for i := 0; i < 20; i++ {
		pa, ca := a.Next()
		pb, cb := b.Next()
		assert.Equal(t, pa, pb)
		assert.Equal(t, ca, cb)
		assert.True(t, pa.Valid())
		assert.Less(t, ca, time.Millisecond)
	}

	log, _ := test.NewNullLogger()
	s := sched.New(sched.DefaultConfig(), sched.WithLogger(log))
	ids := NewLoad(5, 0, 1).Enqueue(s)
	assert.Len(t, ids, 5)
	assert.Equal(t, 5, s.Queue().Len())
	assert.True(t, s.IsFrameScheduled())

	ran := false
	s.AddTask(sched.UserInput, Func(func() { ran = true }))
	s.ExecuteFrame()
	assert.True(t, ran)
}

func TestWork(t *testing.T) {
	for _, p := range sched.AllPriorities {
		assert.Equal(t, p == sched.Idle, Blocking(p), "priority %s", p)
	}

	t.Run("blocking work honours the deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, Work(sched.Idle, time.Minute)(ctx), context.DeadlineExceeded)
	})

	t.Run("cpu work stops when cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, Work(sched.UserInput, time.Minute)(ctx), context.Canceled)
	})
}
