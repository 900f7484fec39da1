package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events so a burst of writes to the same
// path collapses into a single event before it reaches the indexer. Two
// events for the same path within the debounce window merge by this table:
//
//	first op  incoming op  result
//	CREATE    MODIFY       CREATE  (still new)
//	CREATE    DELETE       dropped (never really existed)
//	MODIFY    DELETE       DELETE
//	DELETE    CREATE       MODIFY  (replaced)
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*coalescedEvent
	timer   *time.Timer
	stopped bool

	output chan []FileEvent
	stopCh chan struct{}
}

// coalescedEvent tracks the merged event for one path plus the operation
// that started the run, since the merge rules depend on where the run began.
type coalescedEvent struct {
	event    FileEvent
	firstOp  Operation
	lastSeen time.Time
}

// NewDebouncer creates a debouncer that flushes coalesced events after window
// has elapsed since the most recent event on any path; one shared timer
// flushes every pending path together.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*coalescedEvent),
		output:  make(chan []FileEvent, 10),
		stopCh:  make(chan struct{}),
	}
}

// Add records an event, coalescing it with any pending event for the same
// path, and (re)starts the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	if existing, ok := d.pending[event.Path]; ok {
		merged, keep := mergeOperation(existing.firstOp, event)
		if !keep {
			delete(d.pending, event.Path)
		} else {
			existing.event = merged
			existing.lastSeen = now
		}
	} else {
		d.pending[event.Path] = &coalescedEvent{
			event:    event,
			firstOp:  event.Operation,
			lastSeen: now,
		}
	}

	d.scheduleFlush()
}

// mergeOperation applies the coalescing table to firstOp (the operation that
// started the current run for a path) and incoming (the new event just
// seen). It reports keep=false when the two cancel out entirely.
func mergeOperation(firstOp Operation, incoming FileEvent) (FileEvent, bool) {
	switch firstOp {
	case OpCreate:
		switch incoming.Operation {
		case OpModify:
			incoming.Operation = OpCreate
			return incoming, true
		case OpDelete:
			return FileEvent{}, false
		default:
			return incoming, true
		}
	case OpModify:
		return incoming, true
	case OpDelete:
		if incoming.Operation == OpCreate {
			incoming.Operation = OpModify
		}
		return incoming, true
	default:
		return incoming, true
	}
}

// scheduleFlush (re)arms the timer that flushes pending events after window.
// Must be called with d.mu held.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits every pending event as one batch and clears the pending set.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		events = append(events, pe.event)
	}
	d.pending = make(map[string]*coalescedEvent)

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch", slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop halts the debouncer and closes Output. Safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopCh)
	close(d.output)
}
