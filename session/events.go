package session

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the type of event emitted by the Store.
type EventKind string

const (
	// EventStateChanged is emitted when a dispatched action produced a
	// different state.
	EventStateChanged EventKind = "state.changed"

	// EventStateUnchanged is emitted when the reducer returned an equal
	// state (failed precondition, no-op removal, identical re-add).
	EventStateUnchanged EventKind = "state.unchanged"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event records one dispatch. Prev and Next are private copies; handlers may
// read them freely.
type Event struct {
	// ID is unique per event.
	ID string

	// Kind tells whether the dispatch changed the state.
	Kind EventKind

	// SessionID identifies the Store instance (one per process / page load).
	SessionID string

	// Seq is a monotonic per-session sequence number (1-indexed).
	Seq uint64

	// Time is when the action was applied.
	Time time.Time

	// Action is the dispatched action.
	Action Action

	// Prev is the state before the action.
	Prev State

	// Next is the state after the action.
	Next State
}

// NewEvent creates an event for action with a fresh id.
func NewEvent(kind EventKind, sessionID string, action Action) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		SessionID: sessionID,
		Time:      time.Now(),
		Action:    action,
	}
}

// Changed reports whether the dispatch produced a different state.
func (e Event) Changed() bool {
	return e.Kind == EventStateChanged
}

// EventHandler receives events synchronously after each dispatch.
type EventHandler func(Event)
