package main

import (
	"context"
	"errors"
	"runtime"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"notiontimer/internal/config"
	"notiontimer/internal/core/model"
	"notiontimer/internal/core/stopwatch"
	"notiontimer/internal/host"
	"notiontimer/internal/platform"
	"notiontimer/internal/storage"
	"notiontimer/internal/ui/overlay"
	"notiontimer/internal/ui/preferences"
	"notiontimer/internal/ui/tray"
)

var errTrayUnsupported = errors.New("system tray unsupported on this platform")

// runDesktop runs the tray application until Quit or ctx ends. Saved
// preferences take precedence over config unless the port flag was given.
func runDesktop(ctx context.Context, cfg config.Config, portFlag bool) error {
	guard, err := platform.AcquireSingleInstance(appName)
	if err != nil {
		log.Info().Err(err).Msg("asking running instance to show itself")
		if signalErr := platform.SignalRunning(appName, "show"); signalErr != nil {
			log.Warn().Err(signalErr).Msg("single instance")
		}
		return nil
	}
	defer func() {
		_ = guard.Release()
	}()

	settings := preferences.DefaultSettings()
	store, err := storage.NewStore(appName)
	if err != nil {
		log.Warn().Err(err).Msg("preferences unavailable")
	} else if settings, err = store.Load(); err != nil {
		log.Warn().Err(err).Str("path", store.Path()).Msg("using default preferences")
	}
	if !portFlag {
		cfg.Broadcast.Port = settings.BroadcastPort
	}

	fyneApp := app.NewWithID("com.notiontimer.app")
	fyneApp.SetIcon(theme.HistoryIcon())
	desktopApp, ok := fyneApp.(desktop.App)
	if !ok {
		return errTrayUnsupported
	}

	trayWindow := fyneApp.NewWindow(appName)
	trayWindow.SetContent(widget.NewLabel("NotionTimer is running in the system tray."))
	trayWindow.SetCloseIntercept(trayWindow.Hide)
	trayWindow.Hide()
	desktopApp.SetSystemTrayWindow(trayWindow)

	sw := stopwatch.New(cfg.StopwatchConfig(), nil)
	overlayWindow := overlay.New(fyneApp, overlay.Config{
		Opacity: overlay.OpacityToAlpha(settings.OverlayOpacity),
		Visible: settings.ShowOverlay,
	})

	var h *host.Host
	prefsWindow := preferences.New(fyneApp, settings, func(updated preferences.Settings) {
		if updated.LaunchAtLogin != settings.LaunchAtLogin {
			applyLoginItem(updated.LaunchAtLogin)
		}
		settings = updated
		if store != nil {
			if err := store.Save(updated); err != nil {
				log.Error().Err(err).Msg("save preferences")
			}
		}
		overlayWindow.UpdateConfig(overlay.Config{
			Opacity: overlay.OpacityToAlpha(updated.OverlayOpacity),
			Visible: updated.ShowOverlay,
		})
		h.SetConfig(hostConfig(cfg, updated))
	})

	trayManager := tray.New(desktopApp, tray.Callbacks{
		OnToggle:   func() { h.Toggle() },
		OnStop:     func() { h.Stop() },
		OnSettings: prefsWindow.Show,
		OnQuit:     fyneApp.Quit,
	})

	display := host.Displays{trayManager, overlayWindow, remoteStatus{prefsWindow}}
	h = host.New(sw, display, fyne.Do, hostConfig(cfg, settings))
	remote := host.StartRemote(h, cfg.BroadcastConfig(), cfg.RelayConfig())

	go guard.Serve(func(command string) {
		switch command {
		case "show":
			fyne.Do(prefsWindow.Show)
		case "toggle":
			h.Toggle()
		}
	})
	go func() {
		<-ctx.Done()
		fyne.Do(fyneApp.Quit)
	}()

	fyneApp.Run()

	sw.Stop()
	remote.Close()
	runtime.KeepAlive(h)
	return nil
}

func applyLoginItem(enabled bool) {
	item, err := platform.NewLoginItem(appName)
	if err == nil {
		err = item.Apply(enabled)
	}
	if err != nil {
		log.Error().Err(err).Bool("enabled", enabled).Msg("update login item")
	}
}

// hostConfig lets either the config or the saved preferences enable remote
// control.
func hostConfig(cfg config.Config, settings preferences.Settings) model.HostConfig {
	return model.HostConfig{
		RemoteControl: cfg.RemoteControl || settings.RemoteControl,
		ShowOverlay:   settings.ShowOverlay,
	}
}

// remoteStatus shows only the broadcast status, in the preferences window.
type remoteStatus struct {
	window *preferences.Window
}

func (status remoteStatus) SetDescription(string)       {}
func (status remoteStatus) SetState(stopwatch.State)    {}
func (status remoteStatus) SetRemoteStatus(text string) { status.window.SetRemoteStatus(text) }
