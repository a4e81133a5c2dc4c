package stopwatch

import (
	"time"

	"notiontimer/internal/core/multicast"
)

// Observer receives Stopwatch notifications. Callbacks run on the goroutine
// that triggered them and must not block.
type Observer interface {
	OnStarted(sw *Stopwatch)
	OnPaused(sw *Stopwatch)
	OnStopped(sw *Stopwatch, value time.Duration)
	OnChanged(sw *Stopwatch)
}

// Subscribe registers observer without keeping it alive. The caller owns the
// observer; once it becomes unreachable it stops receiving notifications.
func Subscribe[T any, PT interface {
	*T
	Observer
}](sw *Stopwatch, observer PT) {
	sw.observers.Subscribe(observerRef[T, PT](observer))
}

// Unsubscribe removes one registration of observer.
func Unsubscribe[T any, PT interface {
	*T
	Observer
}](sw *Stopwatch, observer PT) {
	sw.observers.Unsubscribe(observerRef[T, PT](observer))
}

func observerRef[T any, PT interface {
	*T
	Observer
}](observer PT) multicast.Ref[Observer] {
	return multicast.Weak((*T)(observer), func(ptr *T) Observer { return PT(ptr) })
}

// EventChannel adapts Stopwatch notifications to a buffered channel.
// Sends never block; events are dropped when the buffer is full.
type EventChannel struct {
	C  <-chan Event
	ch chan Event
}

// NewEventChannel creates an EventChannel with the given buffer size.
func NewEventChannel(buffer int) *EventChannel {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	return &EventChannel{C: ch, ch: ch}
}

func (events *EventChannel) OnStarted(sw *Stopwatch) {
	events.send(Event{Type: EventStarted}, sw)
}

func (events *EventChannel) OnPaused(sw *Stopwatch) {
	events.send(Event{Type: EventPaused}, sw)
}

func (events *EventChannel) OnStopped(sw *Stopwatch, value time.Duration) {
	events.send(Event{Type: EventStopped, Value: value}, sw)
}

func (events *EventChannel) OnChanged(sw *Stopwatch) {
	events.send(Event{Type: EventChanged}, sw)
}

func (events *EventChannel) send(event Event, sw *Stopwatch) {
	event.State, event.Elapsed = sw.Snapshot()
	event.At = sw.clock.Now()
	select {
	case events.ch <- event:
	default:
	}
}
