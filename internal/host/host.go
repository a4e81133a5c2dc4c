package host

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"notiontimer/internal/broadcast"
	"notiontimer/internal/core/model"
	"notiontimer/internal/core/stopwatch"
)

// Display renders stopwatch state. Its methods are only called through the
// host's Dispatcher.
type Display interface {
	SetDescription(text string)
	SetState(state stopwatch.State)
	SetRemoteStatus(status string)
}

// Publisher re-publishes descriptions to remote observers.
type Publisher interface {
	Broadcast(message string) int
}

// Dispatcher runs fn on the goroutine that owns the Display.
type Dispatcher func(fn func())

// Host connects one Stopwatch to the display and remote publishers.
type Host struct {
	stopwatch *stopwatch.Stopwatch
	display   Display
	dispatch  Dispatcher

	mu         sync.RWMutex
	config     model.HostConfig
	publishers []Publisher
}

// New creates a Host and subscribes it to sw. The caller must keep the Host
// reachable for as long as it should receive notifications.
func New(sw *stopwatch.Stopwatch, display Display, dispatch Dispatcher, config model.HostConfig) *Host {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	host := &Host{
		stopwatch: sw,
		display:   display,
		dispatch:  dispatch,
		config:    config,
	}
	stopwatch.Subscribe(sw, host)
	return host
}

// AddPublisher registers a remote publisher.
func (host *Host) AddPublisher(publisher Publisher) {
	if publisher == nil {
		return
	}
	host.mu.Lock()
	host.publishers = append(host.publishers, publisher)
	host.mu.Unlock()
}

// SetConfig replaces the behavior switches, e.g. after preferences change.
func (host *Host) SetConfig(config model.HostConfig) {
	host.mu.Lock()
	host.config = config
	host.mu.Unlock()
}

// Config returns the current behavior switches.
func (host *Host) Config() model.HostConfig {
	host.mu.RLock()
	defer host.mu.RUnlock()
	return host.config
}

// Stopwatch returns the stopwatch driven by this host.
func (host *Host) Stopwatch() *stopwatch.Stopwatch { return host.stopwatch }

func (host *Host) OnStarted(sw *stopwatch.Stopwatch) { host.showState(stopwatch.StateRunning) }

func (host *Host) OnPaused(sw *stopwatch.Stopwatch) { host.showState(sw.State()) }

func (host *Host) OnStopped(sw *stopwatch.Stopwatch, value time.Duration) {
	log.Info().Dur("elapsed", value).Str("description", stopwatch.Format(value)).Msg("stopwatch stopped")
	host.showState(stopwatch.StateStopped)
}

func (host *Host) OnChanged(sw *stopwatch.Stopwatch) {
	description := sw.Description()

	host.mu.RLock()
	publishers := append([]Publisher(nil), host.publishers...)
	host.mu.RUnlock()
	for _, publisher := range publishers {
		publisher.Broadcast(description)
	}

	if host.display != nil {
		host.dispatch(func() { host.display.SetDescription(description) })
	}
}

// Toggle starts a stopped or paused stopwatch and pauses a running one.
func (host *Host) Toggle() {
	if host.stopwatch.IsRunning() {
		host.stopwatch.Pause()
		return
	}
	host.stopwatch.Start()
}

func (host *Host) Stop() { host.stopwatch.Stop() }

func (host *Host) Reset(value time.Duration) { host.stopwatch.Reset(value) }

// HandleMessage receives text sent by a remote client. Commands are only
// acted on when remote control is enabled.
func (host *Host) HandleMessage(message string) {
	log.Info().Str("message", message).Msg("received remote message")
	if !host.Config().RemoteControl {
		return
	}

	fields := strings.Fields(strings.ToLower(message))
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "start":
		host.stopwatch.Start()
	case "pause":
		host.stopwatch.Pause()
	case "toggle":
		host.Toggle()
	case "stop":
		host.stopwatch.Stop()
	case "reset":
		var value time.Duration
		if len(fields) > 1 {
			seconds, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || !validResetSeconds(seconds) {
				log.Warn().Str("message", message).Msg("invalid reset value")
				return
			}
			value = time.Duration(seconds * float64(time.Second))
		}
		host.stopwatch.Reset(value)
	default:
		log.Debug().Str("message", message).Msg("ignoring unknown remote command")
	}
}

// ServerStarted records the broadcast server start outcome. A failure leaves
// local timekeeping untouched.
func (host *Host) ServerStarted(outcome broadcast.Outcome) {
	status := "remote broadcast unavailable"
	if outcome.Err != nil {
		log.Warn().Err(outcome.Err).Msg("remote broadcast unavailable")
	} else {
		status = "broadcasting on ws://" + outcome.Addr.String()
	}
	if host.display != nil {
		host.dispatch(func() { host.display.SetRemoteStatus(status) })
	}
}

func (host *Host) showState(state stopwatch.State) {
	if host.display == nil {
		return
	}
	host.dispatch(func() { host.display.SetState(state) })
}

// validResetSeconds accepts finite, non-negative values that fit a Duration.
func validResetSeconds(seconds float64) bool {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return false
	}
	return seconds <= float64(math.MaxInt64/int64(time.Second))
}
