package host

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"notiontimer/internal/core/stopwatch"
)

// LogDisplay renders to the logger when running without a GUI.
type LogDisplay struct {
	Level zerolog.Level
}

func (display LogDisplay) SetDescription(text string) {
	log.WithLevel(display.Level).Str("elapsed", text).Msg("tick")
}

func (display LogDisplay) SetState(state stopwatch.State) {
	log.Info().Str("state", string(state)).Msg("stopwatch state")
}

func (display LogDisplay) SetRemoteStatus(status string) {
	log.Info().Msg(status)
}

// Displays fans every update out to several displays in order.
type Displays []Display

func (displays Displays) SetDescription(text string) {
	for _, display := range displays {
		display.SetDescription(text)
	}
}

func (displays Displays) SetState(state stopwatch.State) {
	for _, display := range displays {
		display.SetState(state)
	}
}

func (displays Displays) SetRemoteStatus(status string) {
	for _, display := range displays {
		display.SetRemoteStatus(status)
	}
}
