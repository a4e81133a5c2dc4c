package stopwatch

import "time"

// State represents the current Stopwatch mode.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// EventType defines the type of Stopwatch event.
type EventType string

const (
	EventStarted EventType = "started"
	EventPaused  EventType = "paused"
	EventStopped EventType = "stopped"
	EventChanged EventType = "changed"
)

// Event represents a Stopwatch update for channel observers.
type Event struct {
	Type    EventType
	State   State
	Elapsed time.Duration
	// Value is the final elapsed duration carried by EventStopped.
	Value time.Duration
	At    time.Time
}
