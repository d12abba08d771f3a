// internal/sched/applifecycle.go

package sched

// AppLifecycleState mirrors the host application's visibility.
type AppLifecycleState int32

const (
	AppResumed  AppLifecycleState = iota // visible and focused
	AppInactive                          // visible, not focused
	AppHidden
	AppPaused
	AppDetached
)

func (s AppLifecycleState) String() string {
	switch s {
	case AppResumed:
		return "resumed"
	case AppInactive:
		return "inactive"
	case AppHidden:
		return "hidden"
	case AppPaused:
		return "paused"
	case AppDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// ShouldRender reports whether frames are produced in this state.
func (s AppLifecycleState) ShouldRender() bool {
	return s == AppResumed || s == AppInactive
}

// ShouldAnimate reports whether animations advance in this state.
func (s AppLifecycleState) ShouldAnimate() bool {
	return s == AppResumed
}

// LifecycleListener is told about every state change.
type LifecycleListener func(AppLifecycleState)

type lifecycleEntry struct {
	id CallbackID
	fn LifecycleListener
}

// LifecycleState returns the current host state.
func (s *Scheduler) LifecycleState() AppLifecycleState {
	return AppLifecycleState(s.appState.Load())
}

// HandleAppLifecycleStateChange records a new host state and notifies
// listeners when it differs from the old one.
func (s *Scheduler) HandleAppLifecycleStateChange(state AppLifecycleState) {
	old := AppLifecycleState(s.appState.Swap(int32(state)))
	if old == state {
		return
	}

	s.mu.Lock()
	listeners := make([]LifecycleListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l.fn)
	}
	s.mu.Unlock()

	s.emit(StatusEvent{Kind: StatusLifecycle, Frame: s.FrameCount(), Detail: old.String() + " -> " + state.String()})
	for _, fn := range listeners {
		fn(state)
	}
}

// AddLifecycleListener registers fn and returns an id for removal.
func (s *Scheduler) AddLifecycleListener(fn LifecycleListener) CallbackID {
	id := s.nextCallbackID()
	s.mu.Lock()
	s.listeners = append(s.listeners, lifecycleEntry{id: id, fn: fn})
	s.mu.Unlock()
	return id
}

// RemoveLifecycleListener unregisters a listener.
func (s *Scheduler) RemoveLifecycleListener(id CallbackID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// ShouldScheduleFrame is false while the app is hidden, paused or detached.
func (s *Scheduler) ShouldScheduleFrame() bool {
	return s.LifecycleState().ShouldRender()
}

// ShouldRunAnimations is true only while the app is resumed.
func (s *Scheduler) ShouldRunAnimations() bool {
	return s.LifecycleState().ShouldAnimate()
}
