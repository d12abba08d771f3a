// internal/sched/callbacks.go

package sched

import (
	"slices"
	"sync"

	"framesched/internal/frame"
)

// CallbackID identifies a registered frame callback.
type CallbackID uint64

// FrameCallback receives the timing of the frame it runs in.
type FrameCallback func(frame.Timing)

type callbackEntry struct {
	id CallbackID
	fn FrameCallback
}

// onceCallbacks fire on the next run and are then forgotten. A callback
// cancelled by an earlier callback of the same run does not fire.
type onceCallbacks struct {
	mu      sync.Mutex // protects entries and running
	entries []callbackEntry
	running map[CallbackID]bool // ids of the batch being run that have not fired yet
}

func (c *onceCallbacks) add(id CallbackID, fn FrameCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, callbackEntry{id: id, fn: fn})
}

func (c *onceCallbacks) cancel(id CallbackID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := slices.IndexFunc(c.entries, func(e callbackEntry) bool { return e.id == id }); i >= 0 {
		c.entries = slices.Delete(c.entries, i, i+1)
		return true
	}
	if c.running[id] {
		delete(c.running, id)
		return true
	}
	return false
}

func (c *onceCallbacks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// run fires the current batch in registration order. Callbacks added while
// it runs wait for the next run. It returns how many fired.
func (c *onceCallbacks) run(timing frame.Timing) int {
	c.mu.Lock()
	batch := c.entries
	c.entries = nil
	c.running = make(map[CallbackID]bool, len(batch))
	for _, e := range batch {
		c.running[e.id] = true
	}
	c.mu.Unlock()

	// a panicking callback must not leave stale ids cancellable
	defer func() {
		c.mu.Lock()
		c.running = nil
		c.mu.Unlock()
	}()

	fired := 0
	for _, e := range batch {
		c.mu.Lock()
		pending := c.running[e.id]
		delete(c.running, e.id)
		c.mu.Unlock()
		if !pending {
			continue
		}
		e.fn(timing)
		fired++
	}
	return fired
}

// persistentCallbacks fire on every run until removed.
type persistentCallbacks struct {
	mu      sync.Mutex // protects entries
	entries []callbackEntry
}

func (c *persistentCallbacks) add(id CallbackID, fn FrameCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, callbackEntry{id: id, fn: fn})
}

func (c *persistentCallbacks) remove(id CallbackID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.IndexFunc(c.entries, func(e callbackEntry) bool { return e.id == id })
	if i < 0 {
		return false
	}
	c.entries = slices.Delete(c.entries, i, i+1)
	return true
}

func (c *persistentCallbacks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// run fires a snapshot in registration order. Changes made by a callback take
// effect on the next run.
func (c *persistentCallbacks) run(timing frame.Timing) int {
	c.mu.Lock()
	snapshot := slices.Clone(c.entries)
	c.mu.Unlock()

	for _, e := range snapshot {
		e.fn(timing)
	}
	return len(snapshot)
}
