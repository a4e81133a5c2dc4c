package main

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"notiontimer/internal/config"
	"notiontimer/internal/core/stopwatch"
	"notiontimer/internal/host"
)

// runHeadless starts the stopwatch immediately and serves until ctx ends.
func runHeadless(ctx context.Context, cfg config.Config) error {
	sw := stopwatch.New(cfg.StopwatchConfig(), nil)
	h := host.New(sw, host.LogDisplay{Level: zerolog.DebugLevel}, nil, cfg.HostConfig())
	remote := host.StartRemote(h, cfg.BroadcastConfig(), cfg.RelayConfig())

	sw.Start()
	log.Info().Bool("remote_control", cfg.RemoteControl).Msg("notiontimer running headless")

	<-ctx.Done()
	sw.Stop()
	remote.Close()
	runtime.KeepAlive(h)
	return nil
}
