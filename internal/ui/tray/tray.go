package tray

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"notiontimer/internal/core/stopwatch"
)

// App is the part of desktop.App the tray drives.
type App interface {
	SetSystemTrayMenu(menu *fyne.Menu)
	SetSystemTrayIcon(icon fyne.Resource)
}

// Callbacks defines tray action handlers.
type Callbacks struct {
	OnToggle   func()
	OnStop     func()
	OnSettings func()
	OnQuit     func()
}

// Manager handles system tray state.
type Manager struct {
	app         App
	statusItem  *fyne.MenuItem
	toggleItem  *fyne.MenuItem
	stopItem    *fyne.MenuItem
	remoteItem  *fyne.MenuItem
	callbacks   Callbacks
	state       stopwatch.State
	description string
}

// New creates a tray manager with the provided callbacks.
func New(app App, callbacks Callbacks) *Manager {
	manager := &Manager{
		app:         app,
		callbacks:   callbacks,
		state:       stopwatch.StateStopped,
		description: stopwatch.Format(0),
	}

	manager.statusItem = fyne.NewMenuItem("", nil)
	manager.statusItem.Disabled = true

	manager.toggleItem = fyne.NewMenuItem("Start", func() { call(manager.callbacks.OnToggle) })
	manager.stopItem = fyne.NewMenuItem("Stop", func() { call(manager.callbacks.OnStop) })

	manager.remoteItem = fyne.NewMenuItem("Remote: starting...", nil)
	manager.remoteItem.Disabled = true

	manager.applyState()
	return manager
}

// SetDescription updates the elapsed time shown in the status item.
func (manager *Manager) SetDescription(text string) {
	manager.description = text
	manager.refreshStatus()
	manager.refreshMenu()
}

// SetState updates menu labels and the tray icon.
func (manager *Manager) SetState(state stopwatch.State) {
	manager.state = state
	manager.applyState()
}

// SetRemoteStatus updates the remote broadcast label.
func (manager *Manager) SetRemoteStatus(status string) {
	manager.remoteItem.Label = "Remote: " + status
	manager.refreshMenu()
}

// Status returns the current status label.
func (manager *Manager) Status() string { return manager.statusItem.Label }

func (manager *Manager) applyState() {
	if manager.state == stopwatch.StateRunning {
		manager.toggleItem.Label = "Pause"
	} else {
		manager.toggleItem.Label = "Start"
	}
	manager.stopItem.Disabled = manager.state == stopwatch.StateStopped
	if manager.app != nil {
		manager.app.SetSystemTrayIcon(iconFor(manager.state))
	}
	manager.refreshStatus()
	manager.refreshMenu()
}

func (manager *Manager) refreshStatus() {
	status := manager.description
	if manager.state == stopwatch.StatePaused {
		status = fmt.Sprintf("%s (paused)", status)
	}
	manager.statusItem.Label = status
}

func (manager *Manager) refreshMenu() {
	if manager.app == nil {
		return
	}
	manager.app.SetSystemTrayMenu(fyne.NewMenu("NotionTimer",
		manager.statusItem,
		fyne.NewMenuItemSeparator(),
		manager.toggleItem,
		manager.stopItem,
		fyne.NewMenuItemSeparator(),
		manager.remoteItem,
		fyne.NewMenuItem("Settings", func() { call(manager.callbacks.OnSettings) }),
		fyne.NewMenuItem("Quit", func() { call(manager.callbacks.OnQuit) }),
	))
}

func iconFor(state stopwatch.State) fyne.Resource {
	switch state {
	case stopwatch.StateRunning:
		return theme.MediaPlayIcon()
	case stopwatch.StatePaused:
		return theme.MediaPauseIcon()
	default:
		return theme.MediaStopIcon()
	}
}

func call(callback func()) {
	if callback != nil {
		callback()
	}
}
