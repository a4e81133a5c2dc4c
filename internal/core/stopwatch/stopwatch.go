package stopwatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"notiontimer/internal/core/model"
	"notiontimer/internal/core/multicast"
)

// DefaultTickInterval is the refresh cadence while running.
const DefaultTickInterval = 500 * time.Millisecond

// Stopwatch is a state machine that tracks elapsed time and notifies observers.
type Stopwatch struct {
	mu           sync.Mutex
	clock        clockwork.Clock
	config       model.StopwatchConfig
	accumulated  time.Duration
	runningSince time.Time
	running      bool
	ticker       clockwork.Ticker
	stopCh       chan struct{}
	observers    *multicast.Notifier[Observer]
}

// New creates a stopped Stopwatch. A nil clock uses the wall clock.
func New(config model.StopwatchConfig, clock clockwork.Clock) *Stopwatch {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Stopwatch{
		clock:     clock,
		config:    config,
		observers: multicast.New[Observer](),
	}
}

// Elapsed returns the total time accounted for by the stopwatch.
func (sw *Stopwatch) Elapsed() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.elapsedLocked()
}

// State reports whether the stopwatch is stopped, running or paused.
func (sw *Stopwatch) State() State {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.stateLocked()
}

// Snapshot returns the state and elapsed time read at the same instant.
func (sw *Stopwatch) Snapshot() (State, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.stateLocked(), sw.elapsedLocked()
}

func (sw *Stopwatch) IsRunning() bool { return sw.State() == StateRunning }
func (sw *Stopwatch) IsPaused() bool  { return sw.State() == StatePaused }
func (sw *Stopwatch) IsStopped() bool { return sw.State() == StateStopped }

// Description formats the current elapsed time as MM:SS or HH:MM:SS.
func (sw *Stopwatch) Description() string {
	return Format(sw.Elapsed())
}

func (sw *Stopwatch) String() string {
	return fmt.Sprintf("stopwatch(%s %s)", sw.State(), sw.Description())
}

// Start begins or resumes timing. It is a no-op while running.
func (sw *Stopwatch) Start() {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = true
	sw.runningSince = sw.clock.Now()
	sw.ticker = sw.clock.NewTicker(sw.config.TickInterval)
	sw.stopCh = make(chan struct{})
	go sw.run(sw.ticker, sw.stopCh)
	sw.mu.Unlock()

	sw.observers.Notify(func(observer Observer) { observer.OnStarted(sw) })
	sw.observers.Notify(func(observer Observer) { observer.OnChanged(sw) })
}

// Pause freezes the elapsed value. It is a no-op unless running.
func (sw *Stopwatch) Pause() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	sw.accumulated = sw.elapsedLocked()
	sw.haltLocked()
	sw.mu.Unlock()

	sw.observers.Notify(func(observer Observer) { observer.OnPaused(sw) })
	sw.observers.Notify(func(observer Observer) { observer.OnChanged(sw) })
}

// Stop ends the session, reports the final value and clears the elapsed time.
// It is a no-op while stopped.
func (sw *Stopwatch) Stop() {
	sw.mu.Lock()
	if sw.stateLocked() == StateStopped {
		sw.mu.Unlock()
		return
	}
	final := sw.elapsedLocked()
	sw.accumulated = 0
	sw.haltLocked()
	sw.mu.Unlock()

	sw.observers.Notify(func(observer Observer) { observer.OnChanged(sw) })
	sw.observers.Notify(func(observer Observer) { observer.OnStopped(sw, final) })
}

// Reset sets the elapsed time to value without changing the state. While
// running, timing continues from value.
func (sw *Stopwatch) Reset(value time.Duration) {
	if value < 0 {
		value = 0
	}
	sw.mu.Lock()
	sw.accumulated = value
	sw.runningSince = sw.clock.Now()
	sw.mu.Unlock()

	sw.observers.Notify(func(observer Observer) { observer.OnChanged(sw) })
}

func (sw *Stopwatch) run(ticker clockwork.Ticker, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			if !sw.tickAllowed(stopCh) {
				return
			}
			sw.observers.Notify(func(observer Observer) { observer.OnChanged(sw) })
		}
	}
}

// tickAllowed reports whether stopCh still belongs to the active run loop.
func (sw *Stopwatch) tickAllowed(stopCh <-chan struct{}) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.running && sw.stopCh == stopCh
}

func (sw *Stopwatch) haltLocked() {
	sw.running = false
	if sw.ticker != nil {
		sw.ticker.Stop()
		sw.ticker = nil
	}
	if sw.stopCh != nil {
		close(sw.stopCh)
		sw.stopCh = nil
	}
}

func (sw *Stopwatch) elapsedLocked() time.Duration {
	if !sw.running {
		return sw.accumulated
	}
	return sw.accumulated + sw.clock.Since(sw.runningSince)
}

func (sw *Stopwatch) stateLocked() State {
	switch {
	case sw.running:
		return StateRunning
	case sw.accumulated > 0:
		return StatePaused
	default:
		return StateStopped
	}
}
