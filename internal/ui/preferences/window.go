package preferences

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// Window handles the preferences UI.
type Window struct {
	window        fyne.Window
	settings      Settings
	onSave        func(Settings)
	showOverlay   *widget.Check
	remoteControl *widget.Check
	port          *widget.Entry
	opacity       *widget.Slider
	launchAtLogin *widget.Check
	remoteStatus  *widget.Label
}

// New creates a preferences window.
func New(app fyne.App, settings Settings, onSave func(Settings)) *Window {
	window := app.NewWindow("NotionTimer Settings")

	showOverlay := widget.NewCheck("Show floating timer", nil)
	showOverlay.SetChecked(settings.ShowOverlay)

	remoteControl := widget.NewCheck("Allow remote clients to control the timer", nil)
	remoteControl.SetChecked(settings.RemoteControl)

	port := widget.NewEntry()
	port.SetText(strconv.Itoa(settings.BroadcastPort))
	port.Validator = func(value string) error {
		if _, ok := parsePort(value); !ok {
			return strconv.ErrRange
		}
		return nil
	}

	opacity := widget.NewSlider(0.5, 1)
	opacity.Value = settings.OverlayOpacity
	opacity.Step = 0.05

	launchAtLogin := widget.NewCheck("Launch at login", nil)
	launchAtLogin.SetChecked(settings.LaunchAtLogin)

	remoteStatus := widget.NewLabel("")

	form := container.NewVBox(
		widget.NewLabelWithStyle("Display", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		showOverlay,
		widget.NewLabel("Overlay opacity"),
		opacity,
		launchAtLogin,
		widget.NewLabelWithStyle("Remote", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewHBox(widget.NewLabel("Broadcast port"), port),
		remoteControl,
		remoteStatus,
		widget.NewLabel("Port changes apply on next launch."),
	)

	saveButton := widget.NewButton("Save", nil)
	cancelButton := widget.NewButton("Cancel", nil)
	buttons := container.NewHBox(saveButton, layout.NewSpacer(), cancelButton)

	window.SetContent(container.NewBorder(nil, buttons, nil, nil, form))
	window.Resize(fyne.NewSize(380, 320))
	window.SetCloseIntercept(window.Hide)

	prefs := &Window{
		window:        window,
		settings:      settings,
		onSave:        onSave,
		showOverlay:   showOverlay,
		remoteControl: remoteControl,
		port:          port,
		opacity:       opacity,
		launchAtLogin: launchAtLogin,
		remoteStatus:  remoteStatus,
	}

	saveButton.OnTapped = prefs.handleSave
	cancelButton.OnTapped = func() {
		prefs.UpdateSettings(prefs.settings)
		window.Hide()
	}

	return prefs
}

// Show displays the preferences window.
func (prefs *Window) Show() {
	prefs.window.Show()
	prefs.window.RequestFocus()
}

// SetRemoteStatus shows the broadcast server state.
func (prefs *Window) SetRemoteStatus(status string) {
	prefs.remoteStatus.SetText(status)
}

// UpdateSettings replaces window values.
func (prefs *Window) UpdateSettings(settings Settings) {
	prefs.settings = settings
	prefs.showOverlay.SetChecked(settings.ShowOverlay)
	prefs.remoteControl.SetChecked(settings.RemoteControl)
	prefs.port.SetText(strconv.Itoa(settings.BroadcastPort))
	prefs.opacity.Value = settings.OverlayOpacity
	prefs.opacity.Refresh()
	prefs.launchAtLogin.SetChecked(settings.LaunchAtLogin)
}

func (prefs *Window) handleSave() {
	settings := prefs.settings
	if port, ok := parsePort(prefs.port.Text); ok {
		settings.BroadcastPort = port
	}
	settings.ShowOverlay = prefs.showOverlay.Checked
	settings.RemoteControl = prefs.remoteControl.Checked
	settings.OverlayOpacity = prefs.opacity.Value
	settings.LaunchAtLogin = prefs.launchAtLogin.Checked

	prefs.settings = settings
	if prefs.onSave != nil {
		prefs.onSave(settings)
	}
	prefs.window.Hide()
}

func parsePort(value string) (int, bool) {
	parsed, err := strconv.Atoi(value)
	if err != nil || !ValidPort(parsed) {
		return 0, false
	}
	return parsed, true
}
