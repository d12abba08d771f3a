// internal/sched/events.go

package sched

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusKind represents the type of scheduler event.
type StatusKind int

const (
	StatusTick StatusKind = iota
	StatusFrame
	StatusJank
	StatusSkip
	StatusTimeout
	StatusCancel
	StatusLifecycle
)

func (sk StatusKind) String() string {
	switch sk {
	case StatusTick:
		return "Tick"
	case StatusFrame:
		return "Frame"
	case StatusJank:
		return "Jank"
	case StatusSkip:
		return "Skip"
	case StatusTimeout:
		return "Timeout"
	case StatusCancel:
		return "Cancel"
	case StatusLifecycle:
		return "Lifecycle"
	default:
		return "Unknown"
	}
}

// StatusEvent is emitted on every tick and after every frame.
type StatusEvent struct {
	Time      time.Time
	Kind      StatusKind
	Frame     uint64
	Elapsed   time.Duration
	TasksRun  int
	Deferred  int
	Processed int    // pipeline hook calls
	Skipped   uint64 // frames dropped by the skip policy
	Detail    string
}

// statusBuffer is the capacity of the event stream.
const statusBuffer = 256

// StatusChannel exposes a read-only event stream (optional consumers).
// NOTE: sends never block; events are dropped while the buffer is full.
func (s *Scheduler) StatusChannel() <-chan StatusEvent { return s.statusCh }

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv log: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "frame", "event", "elapsed_us", "tasks_run", "tasks_deferred", "processed", "skipped", "detail"}); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()

	s.csvMu.Lock()
	s.csvFile = f
	s.csvWriter = w
	s.csvMu.Unlock()
	return nil
}

// Close flushes and closes the CSV log, if any. Hosts that drive frames
// with HandleTick instead of Run call it when done.
func (s *Scheduler) Close() error {
	s.csvMu.Lock()
	defer s.csvMu.Unlock()

	if s.csvFile == nil {
		return nil
	}
	s.csvWriter.Flush()
	err := s.csvWriter.Error()
	if cerr := s.csvFile.Close(); err == nil {
		err = cerr
	}
	s.csvFile, s.csvWriter = nil, nil
	return err
}

func (s *Scheduler) emit(ev StatusEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.handleEvent(ev)

	select {
	case s.statusCh <- ev:
	default:
		s.dropped.Add(1)
	}
}

// DroppedEvents counts events the stream had no room for.
func (s *Scheduler) DroppedEvents() uint64 {
	return s.dropped.Load()
}

func (s *Scheduler) handleEvent(ev StatusEvent) {
	// ticks occur every vsync; keep them out of the log for brevity
	if ev.Kind == StatusTick {
		return
	}

	fields := logrus.Fields{
		"event": ev.Kind,
		"frame": ev.Frame,
	}
	switch ev.Kind {
	case StatusFrame:
		s.log.WithFields(fields).WithFields(logrus.Fields{
			"elapsed":   ev.Elapsed,
			"tasks":     ev.TasksRun,
			"deferred":  ev.Deferred,
			"processed": ev.Processed,
		}).Debug("frame done")
	case StatusSkip:
		s.log.WithFields(fields).WithField("skipped", ev.Skipped).Info(ev.Detail)
	default:
		s.log.WithFields(fields).WithField("elapsed", ev.Elapsed).Warn(ev.Detail)
	}

	// CSV output
	s.csvMu.Lock()
	defer s.csvMu.Unlock()
	if s.csvWriter == nil {
		return
	}
	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatUint(ev.Frame, 10),
		ev.Kind.String(),
		strconv.FormatInt(ev.Elapsed.Microseconds(), 10),
		strconv.Itoa(ev.TasksRun),
		strconv.Itoa(ev.Deferred),
		strconv.Itoa(ev.Processed),
		strconv.FormatUint(ev.Skipped, 10),
		ev.Detail,
	}
	if err := s.csvWriter.Write(rec); err != nil {
		s.log.WithError(err).Error("csv log write failed")
		return
	}
	s.csvWriter.Flush()
}
