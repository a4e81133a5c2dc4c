package stopwatch

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"notiontimer/internal/core/model"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

// quiet keeps the ticker out of the way so event sequences are exact.
var quiet = model.StopwatchConfig{TickInterval: time.Hour}

func newQuiet(t *testing.T) (*Stopwatch, fakeClock, *EventChannel) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sw := New(quiet, clock)
	events := NewEventChannel(64)
	Subscribe(sw, events)
	return sw, clock, events
}

func expectEvents(t *testing.T, events *EventChannel, want ...EventType) []Event {
	t.Helper()
	got := make([]Event, 0, len(want))
	for _, kind := range want {
		select {
		case event := <-events.C:
			if event.Type != kind {
				t.Fatalf("event %d: got %s want %s", len(got), event.Type, kind)
			}
			got = append(got, event)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
	return got
}

func expectNoEvent(t *testing.T, events *EventChannel) {
	t.Helper()
	select {
	case event := <-events.C:
		t.Fatalf("unexpected event %s", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewStopwatchIsStopped(t *testing.T) {
	sw := New(model.StopwatchConfig{}, clockwork.NewFakeClock())
	if !sw.IsStopped() || sw.IsRunning() || sw.IsPaused() {
		t.Fatalf("state=%s", sw.State())
	}
	if sw.Elapsed() != 0 || sw.Description() != "00:00" {
		t.Fatalf("elapsed=%v description=%s", sw.Elapsed(), sw.Description())
	}
	if sw.config.TickInterval != DefaultTickInterval {
		t.Fatalf("tick interval=%v", sw.config.TickInterval)
	}
}

func TestStartNotifiesStartedThenChanged(t *testing.T) {
	sw, _, events := newQuiet(t)
	sw.Start()
	got := expectEvents(t, events, EventStarted, EventChanged)
	if got[0].State != StateRunning {
		t.Fatalf("state=%s", got[0].State)
	}
	if !sw.IsRunning() {
		t.Fatalf("state=%s", sw.State())
	}
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	sw, clock, events := newQuiet(t)
	sw.Start()
	expectEvents(t, events, EventStarted, EventChanged)
	clock.Advance(2 * time.Second)

	sw.Start()
	expectNoEvent(t, events)
	if got := sw.Elapsed(); got != 2*time.Second {
		t.Fatalf("elapsed=%v", got)
	}
}

func TestPauseAndStopGuards(t *testing.T) {
	sw, _, events := newQuiet(t)
	sw.Pause()
	sw.Stop()
	expectNoEvent(t, events)
	if !sw.IsStopped() {
		t.Fatalf("state=%s", sw.State())
	}

	sw.Start()
	expectEvents(t, events, EventStarted, EventChanged)
	sw.Pause()
	// nothing accumulated: pausing at zero lands in the stopped state
	expectEvents(t, events, EventPaused, EventChanged)
	sw.Pause()
	expectNoEvent(t, events)
}

func TestElapsedScenario(t *testing.T) {
	sw, clock, events := newQuiet(t)

	sw.Start()
	clock.Advance(1500 * time.Millisecond)
	if got := sw.Elapsed(); got != 1500*time.Millisecond {
		t.Fatalf("elapsed at 1.5s=%v", got)
	}

	sw.Pause()
	paused := sw.Elapsed()
	if paused != 1500*time.Millisecond || !sw.IsPaused() {
		t.Fatalf("paused=%v state=%s", paused, sw.State())
	}

	clock.Advance(1500 * time.Millisecond)
	if got := sw.Elapsed(); got != paused {
		t.Fatalf("elapsed moved while paused: %v", got)
	}

	sw.Start()
	clock.Advance(time.Second)
	if got := sw.Elapsed(); got != paused+time.Second {
		t.Fatalf("elapsed after resume=%v", got)
	}
	expectEvents(t, events, EventStarted, EventChanged, EventPaused, EventChanged, EventStarted, EventChanged)
}

func TestStopAfterPauseReportsPausedValue(t *testing.T) {
	sw, clock, events := newQuiet(t)
	sw.Start()
	clock.Advance(42 * time.Second)
	sw.Pause()
	expectEvents(t, events, EventStarted, EventChanged, EventPaused, EventChanged)

	sw.Stop()
	got := expectEvents(t, events, EventChanged, EventStopped)
	if got[1].Value != 42*time.Second {
		t.Fatalf("stopped value=%v", got[1].Value)
	}
	if got[0].Elapsed != 0 || got[0].State != StateStopped {
		t.Fatalf("changed event=%+v", got[0])
	}
	if sw.Elapsed() != 0 || !sw.IsStopped() {
		t.Fatalf("elapsed=%v state=%s", sw.Elapsed(), sw.State())
	}

	sw.Stop()
	expectNoEvent(t, events)
}

func TestStopWhileRunning(t *testing.T) {
	sw, clock, events := newQuiet(t)
	sw.Start()
	clock.Advance(3 * time.Second)
	sw.Stop()
	got := expectEvents(t, events, EventStarted, EventChanged, EventChanged, EventStopped)
	if got[3].Value != 3*time.Second {
		t.Fatalf("stopped value=%v", got[3].Value)
	}
	clock.Advance(3 * time.Second)
	if sw.Elapsed() != 0 {
		t.Fatalf("elapsed=%v", sw.Elapsed())
	}
}

func TestResetWhilePaused(t *testing.T) {
	sw, clock, events := newQuiet(t)
	sw.Start()
	clock.Advance(10 * time.Second)
	sw.Pause()
	expectEvents(t, events, EventStarted, EventChanged, EventPaused, EventChanged)

	sw.Reset(90 * time.Second)
	expectEvents(t, events, EventChanged)
	if sw.Elapsed() != 90*time.Second || !sw.IsPaused() {
		t.Fatalf("elapsed=%v state=%s", sw.Elapsed(), sw.State())
	}

	sw.Reset(0)
	expectEvents(t, events, EventChanged)
	if !sw.IsStopped() {
		t.Fatalf("state=%s", sw.State())
	}

	sw.Reset(-time.Second)
	expectEvents(t, events, EventChanged)
	if sw.Elapsed() != 0 {
		t.Fatalf("negative reset stored %v", sw.Elapsed())
	}
}

func TestResetWhileRunningRebases(t *testing.T) {
	sw, clock, _ := newQuiet(t)
	sw.Start()
	clock.Advance(10 * time.Second)
	sw.Reset(5 * time.Second)
	if got := sw.Elapsed(); got != 5*time.Second {
		t.Fatalf("elapsed after reset=%v", got)
	}
	clock.Advance(time.Second)
	if got := sw.Elapsed(); got != 6*time.Second || !sw.IsRunning() {
		t.Fatalf("elapsed=%v state=%s", got, sw.State())
	}
}

func TestTicksWhileRunning(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(model.StopwatchConfig{}, clock)
	events := NewEventChannel(64)
	Subscribe(sw, events)

	sw.Start()
	expectEvents(t, events, EventStarted, EventChanged)

	for i := 1; i <= 3; i++ {
		clock.Advance(DefaultTickInterval)
		got := expectEvents(t, events, EventChanged)
		if got[0].Elapsed < time.Duration(i)*DefaultTickInterval {
			t.Fatalf("tick %d elapsed=%v", i, got[0].Elapsed)
		}
	}

	sw.Pause()
	expectEvents(t, events, EventPaused, EventChanged)
	clock.Advance(5 * DefaultTickInterval)
	expectNoEvent(t, events)

	sw.Start()
	expectEvents(t, events, EventStarted, EventChanged)
	sw.Stop()
	expectEvents(t, events, EventChanged, EventStopped)
	clock.Advance(5 * DefaultTickInterval)
	expectNoEvent(t, events)
}

func TestElapsedIsMonotonicWhileRunning(t *testing.T) {
	sw, clock, _ := newQuiet(t)
	sw.Start()
	previous := sw.Elapsed()
	for i := 0; i < 20; i++ {
		clock.Advance(137 * time.Millisecond)
		current := sw.Elapsed()
		if current < previous {
			t.Fatalf("elapsed went backwards: %v -> %v", previous, current)
		}
		previous = current
	}
}

func TestWallClockTicks(t *testing.T) {
	sw := New(model.StopwatchConfig{TickInterval: 20 * time.Millisecond}, nil)
	events := NewEventChannel(256)
	Subscribe(sw, events)
	sw.Start()
	defer sw.Stop()
	expectEvents(t, events, EventStarted, EventChanged, EventChanged, EventChanged)
	if sw.Elapsed() <= 0 {
		t.Fatalf("elapsed=%v", sw.Elapsed())
	}
}

type countingObserver struct {
	mu      sync.Mutex
	changed int
	stopped []time.Duration
	name    string
}

func (o *countingObserver) OnStarted(*Stopwatch) {}
func (o *countingObserver) OnPaused(*Stopwatch)  {}
func (o *countingObserver) OnStopped(_ *Stopwatch, value time.Duration) {
	o.mu.Lock()
	o.stopped = append(o.stopped, value)
	o.mu.Unlock()
}
func (o *countingObserver) OnChanged(sw *Stopwatch) {
	_ = sw.Description()
	o.mu.Lock()
	o.changed++
	o.mu.Unlock()
}

func (o *countingObserver) changes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.changed
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	sw := New(quiet, clockwork.NewFakeClock())
	observer := &countingObserver{name: "ui"}
	Subscribe(sw, observer)

	sw.Reset(time.Second)
	if observer.changes() != 1 {
		t.Fatalf("changes=%d", observer.changes())
	}

	Unsubscribe(sw, observer)
	sw.Reset(2 * time.Second)
	if observer.changes() != 1 {
		t.Fatalf("changes after unsubscribe=%d", observer.changes())
	}
}

func subscribeTransient(sw *Stopwatch) {
	Subscribe(sw, &countingObserver{name: "transient"})
}

func TestUnreachableObserverIsDropped(t *testing.T) {
	sw := New(quiet, clockwork.NewFakeClock())
	kept := &countingObserver{name: "kept"}
	Subscribe(sw, kept)
	subscribeTransient(sw)
	runtime.GC()
	runtime.GC()

	sw.Reset(time.Second)
	if kept.changes() != 1 {
		t.Fatalf("changes=%d", kept.changes())
	}
	if n := sw.observers.Len(); n != 1 {
		t.Fatalf("slots=%d", n)
	}
	runtime.KeepAlive(kept)
}

func TestSnapshotPairsStateWithElapsed(t *testing.T) {
	sw, clock, events := newQuiet(t)
	if state, elapsed := sw.Snapshot(); state != StateStopped || elapsed != 0 {
		t.Fatalf("state=%s elapsed=%v", state, elapsed)
	}

	sw.Start()
	clock.Advance(7 * time.Second)
	if state, elapsed := sw.Snapshot(); state != StateRunning || elapsed != 7*time.Second {
		t.Fatalf("state=%s elapsed=%v", state, elapsed)
	}

	sw.Pause()
	got := expectEvents(t, events, EventStarted, EventChanged, EventPaused, EventChanged)
	for _, event := range got[2:] {
		if event.State != StatePaused || event.Elapsed != 7*time.Second {
			t.Fatalf("event=%+v", event)
		}
	}
}

func TestEventsNeverPairRunningWithStaleElapsed(t *testing.T) {
	sw := New(model.StopwatchConfig{TickInterval: time.Millisecond}, nil)
	events := NewEventChannel(4096)
	Subscribe(sw, events)
	for i := 0; i < 50; i++ {
		sw.Start()
		time.Sleep(time.Millisecond)
		sw.Stop()
	}
	for {
		select {
		case event := <-events.C:
			if event.State == StateStopped && event.Elapsed != 0 {
				t.Fatalf("stopped event carries elapsed %v", event.Elapsed)
			}
			if event.State == StatePaused && event.Elapsed == 0 {
				t.Fatalf("paused event carries zero elapsed")
			}
		default:
			return
		}
	}
}
