package engine

import "time"

// EventKind classifies an engine lifecycle event.
type EventKind uint8

const (
	// EventStarted is emitted once when a run begins.
	EventStarted EventKind = iota + 1

	// EventStopped is emitted once when a run ends, by any path.
	EventStopped

	// EventAction is emitted before each action executes; Index is the
	// action's position in the macro.
	EventAction

	// EventLoop is emitted at the start of each loop iteration; Loop is
	// the 1-based iteration number.
	EventLoop

	// EventError is emitted at most once per run, for the fault that
	// terminated it.
	EventError

	// EventWarning is emitted for recoverable degradations (bad template,
	// image timeout, missing capture capability). The run continues.
	EventWarning
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventAction:
		return "action"
	case EventLoop:
		return "loop"
	case EventError:
		return "error"
	case EventWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Event is one entry on the engine's event channel.
type Event struct {
	Kind    EventKind
	Index   int    // EventAction: action index
	Loop    int    // EventLoop: iteration number
	Message string // EventError / EventWarning
	Time    time.Time
}

// emit delivers an event without ever blocking the worker. Events the
// consumer has no room for are dropped and counted.
func (e *Engine) emit(ev Event) {
	ev.Time = time.Now()
	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Events returns the engine's event channel. It is never closed; one
// consumer should drain it for the life of the engine.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// DroppedEvents reports how many events were discarded because the
// consumer fell behind.
func (e *Engine) DroppedEvents() uint64 {
	return e.dropped.Load()
}
