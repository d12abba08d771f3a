// internal/report/report.go

// Package report renders frame reports and scheduler summaries for a terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"framesched/internal/frame"
	"framesched/internal/pipeline"
	"framesched/internal/sched"
)

// Status classifies a frame for display.
type Status int

const (
	StatusOK Status = iota
	StatusJank
	StatusTimeout
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusJank:
		return "jank"
	case StatusTimeout:
		return "timeout"
	case StatusCancelled:
		return "cancel"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Classify picks the most severe status that applies to rep.
func Classify(rep sched.FrameReport) Status {
	switch {
	case rep.Outcome == pipeline.Timeout:
		return StatusTimeout
	case rep.Outcome == pipeline.Cancelled:
		return StatusCancelled
	case len(rep.Pipeline.Errors()) > 0 || rep.Tasks.Err != nil:
		return StatusFailed
	case rep.Janky:
		return StatusJank
	default:
		return StatusOK
	}
}

func (s Status) style() lipgloss.Style {
	switch s {
	case StatusOK:
		return styleOK
	case StatusJank:
		return styleJank
	case StatusTimeout, StatusCancelled:
		return styleTimeout
	default:
		return styleError
	}
}

// Line renders rep as a single terminal line.
func Line(rep sched.FrameReport) string {
	st := Classify(rep)
	p := rep.Pipeline

	var b strings.Builder
	b.WriteString(styleValue.Render(fmt.Sprintf("#%-5d", rep.Number)))
	b.WriteString(" ")
	b.WriteString(st.style().Render(fmt.Sprintf("%-7s", st)))
	b.WriteString(" ")
	b.WriteString(styleValue.Render(fmt.Sprintf("%8s", millis(rep.Elapsed))))
	b.WriteString(field("tasks", fmt.Sprintf("%d/%d", rep.Tasks.Ran, rep.Tasks.Deferred)))
	b.WriteString(field("build", fmt.Sprint(p.Build.Processed)))
	b.WriteString(field("layout", fmt.Sprint(p.Layout.Processed)))
	b.WriteString(field("paint", fmt.Sprint(p.Paint.Processed)))
	if n := len(p.Errors()); n > 0 {
		b.WriteString(" ")
		b.WriteString(styleError.Render(fmt.Sprintf("%d errors", n)))
	}
	if rep.Err != nil {
		b.WriteString(" ")
		b.WriteString(styleDim.Render(rep.Err.Error()))
	}
	return b.String()
}

// Phases renders the per-phase time split of rep.
func Phases(rep sched.FrameReport) string {
	parts := make([]string, 0, len(frame.AllPhases))
	for _, ph := range frame.AllPhases {
		d := rep.Stats.Of(ph)
		if d == 0 {
			continue
		}
		parts = append(parts, field(ph.String(), millis(d)))
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

// Summary renders lifetime statistics of s in a bordered box.
func Summary(s *sched.Scheduler) string {
	cfg := s.Config()
	rows := [][2]string{
		{"frames", fmt.Sprint(s.FrameCount())},
		{"target", fmt.Sprintf("%d fps (%s)", s.TargetFPS(), millis(s.Budget().Target()))},
		{"avg frame", millis(s.AvgFrameTime())},
		{"avg fps", fmt.Sprintf("%.1f", s.AvgFPS())},
		{"janky", fmt.Sprintf("%d (%.1f%% recent)", s.JankyFrameCount(), s.JankRate())},
		{"skipped", fmt.Sprintf("%d (%.1f%%, %s)", s.SkippedFrameCount(), s.SkipRate(), s.FrameSkipPolicy())},
		{"queued", fmt.Sprint(s.Queue().Len())},
		{"policy", s.Policy().Name()},
		{"deadline", millis(cfg.FrameDeadline())},
	}
	if n := s.DroppedEvents(); n > 0 {
		rows = append(rows, [2]string{"dropped events", fmt.Sprint(n)})
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	lines := []string{styleTitle.Render("Frame scheduler")}
	for _, r := range rows {
		lines = append(lines, styleLabel.Render(fmt.Sprintf("%-*s", width, r[0]))+"  "+styleValue.Render(r[1]))
	}
	return styleBox.Render(strings.Join(lines, "\n"))
}

func field(label, value string) string {
	return " " + styleLabel.Render(label) + " " + styleValue.Render(value)
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}
