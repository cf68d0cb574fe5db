package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path and emits them as one batch
// once no event has arrived for the window. Events for the same path merge:
//   - create then modify is a create
//   - create then delete cancels out
//   - modify then delete is a delete
//   - delete then create is a modify
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	order   []string
	timer   *time.Timer
	output  chan []Event
	stopped bool
}

type pendingEvent struct {
	event   Event
	firstOp Operation
}

// NewDebouncer creates a debouncer emitting after window of quiet
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []Event, 16),
	}
}

// Add records ev and restarts the quiet window
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		merged, keep := coalesce(existing.firstOp, existing.event, ev)
		if !keep {
			delete(d.pending, ev.Path)
		} else {
			existing.event = merged
		}
	} else {
		d.pending[ev.Path] = &pendingEvent{event: ev, firstOp: ev.Op}
		d.order = append(d.order, ev.Path)
	}
	d.schedule()
}

func coalesce(first Operation, existing, next Event) (Event, bool) {
	switch first {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return existing, true
		case OpDelete:
			return Event{}, false
		}
	case OpDelete:
		if next.Op == OpCreate {
			next.Op = OpModify
			return next, true
		}
	}
	return next, true
}

func (d *Debouncer) schedule() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits pending events in arrival order. A full output keeps them
// pending and retries after another window.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	seen := make(map[string]bool, len(d.pending))
	for _, p := range d.order {
		if pe, ok := d.pending[p]; ok && !seen[p] {
			seen[p] = true
			batch = append(batch, pe.event)
		}
	}

	select {
	case d.output <- batch:
		d.pending = make(map[string]*pendingEvent)
		d.order = nil
	default:
		d.schedule()
	}
}

// Output delivers debounced batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop discards pending events and closes the output. Safe to call twice.
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
	close(d.output)
}
