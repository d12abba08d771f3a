package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"framesched/internal/frame"
	"framesched/internal/pipeline"
	"framesched/internal/sched"
)

func TestClassify(t *testing.T) {
	failed := pipeline.FrameResult{}
	failed.Paint.Errors = []*pipeline.NodeError{{Phase: frame.PhasePaint, Node: 3, Kind: pipeline.ErrPaintFailed}}

	cases := []struct {
		name string
		rep  sched.FrameReport
		want Status
	}{
		{"clean frame", sched.FrameReport{}, StatusOK},
		{"janky frame", sched.FrameReport{Janky: true}, StatusJank},
		{"timeout wins over jank", sched.FrameReport{Janky: true, Outcome: pipeline.Timeout}, StatusTimeout},
		{"cancelled", sched.FrameReport{Outcome: pipeline.Cancelled}, StatusCancelled},
		{"node failure", sched.FrameReport{Pipeline: failed, Janky: true}, StatusFailed},
		{"task failure", sched.FrameReport{Tasks: sched.ExecResult{Err: errors.New("boom")}}, StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.rep))
		})
	}
}

func TestLine(t *testing.T) {
	rep := sched.FrameReport{
		Number:  7,
		Elapsed: 1500 * time.Microsecond,
		Tasks:   sched.ExecResult{Ran: 3, Deferred: 2},
		Outcome: pipeline.Timeout,
		Err:     &pipeline.TimeoutError{Deadline: 8 * time.Millisecond},
	}
	rep.Pipeline.Build.Processed = 4

	line := Line(rep)
	assert.Contains(t, line, "#7")
	assert.Contains(t, line, "timeout")
	assert.Contains(t, line, "1.50ms")
	assert.Contains(t, line, "3/2")
	assert.Contains(t, line, "build")
	assert.Contains(t, line, rep.Err.Error())
}

func TestPhases(t *testing.T) {
	var rep sched.FrameReport
	rep.Stats.Elapsed[frame.PhaseLayout] = 2 * time.Millisecond

	out := Phases(rep)
	assert.Contains(t, out, "Layout")
	assert.Contains(t, out, "2.00ms")
	assert.NotContains(t, out, "Paint")
}

func TestSummary(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := sched.New(sched.DefaultConfig(), sched.WithLogger(log))
	s.AddTask(sched.Build, func(context.Context) error { return nil })
	s.ExecuteFrame()
	s.ExecuteFrame()

	out := Summary(s)
	assert.Contains(t, out, "Frame scheduler")
	assert.Contains(t, out, "frames")
	assert.Contains(t, out, "defer_low")
	assert.Contains(t, out, "catch_up")
}
