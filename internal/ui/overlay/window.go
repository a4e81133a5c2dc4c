package overlay

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"notiontimer/internal/core/stopwatch"
)

// Config defines overlay visuals.
type Config struct {
	Opacity uint8
	Visible bool
}

// Window is a small floating window showing the stopwatch description.
type Window struct {
	app         fyne.App
	window      fyne.Window
	config      Config
	background  *canvas.Rectangle
	title       *canvas.Text
	description *canvas.Text
	status      *canvas.Text
	state       stopwatch.State
}

var (
	runningColor = color.NRGBA{R: 232, G: 190, B: 66, A: 255}
	idleColor    = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	textColor    = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

type splashWindowDriver interface {
	CreateSplashWindow() fyne.Window
}

// New creates the overlay window. It stays hidden until SetVisible(true).
func New(app fyne.App, config Config) *Window {
	window := app.NewWindow("NotionTimer")
	if driver, ok := app.Driver().(splashWindowDriver); ok {
		// Splash window is undecorated (no native frame/buttons).
		window = driver.CreateSplashWindow()
	}
	if app.Icon() != nil {
		window.SetIcon(app.Icon())
	}
	window.SetPadded(false)

	background := canvas.NewRectangle(color.NRGBA{A: config.Opacity})

	title := canvas.NewText("NotionTimer", textColor)
	title.TextStyle = fyne.TextStyle{Bold: true}
	title.TextSize = 12

	description := canvas.NewText(stopwatch.Format(0), idleColor)
	description.TextStyle = fyne.TextStyle{Bold: true, Monospace: true}
	description.TextSize = 28

	status := canvas.NewText(string(stopwatch.StateStopped), textColor)
	status.TextSize = 11

	content := container.New(&stackLayout{}, title, description, status)
	window.SetContent(container.NewStack(background, content))

	overlay := &Window{
		app:         app,
		window:      window,
		config:      config,
		background:  background,
		title:       title,
		description: description,
		status:      status,
		state:       stopwatch.StateStopped,
	}
	overlay.window.Resize(overlay.window.Content().MinSize())
	overlay.applyVisibility()
	return overlay
}

// SetDescription updates the elapsed time text.
func (overlay *Window) SetDescription(text string) {
	overlay.description.Text = text
	overlay.description.Refresh()
}

// SetState recolors the description and updates the state line.
func (overlay *Window) SetState(state stopwatch.State) {
	overlay.state = state
	if state == stopwatch.StateRunning {
		overlay.description.Color = runningColor
	} else {
		overlay.description.Color = idleColor
	}
	overlay.description.Refresh()
	overlay.status.Text = string(state)
	overlay.status.Refresh()
}

// SetRemoteStatus is shown as the window title line.
func (overlay *Window) SetRemoteStatus(status string) {
	overlay.title.Text = status
	overlay.title.Refresh()
}

// SetVisible shows or hides the overlay.
func (overlay *Window) SetVisible(visible bool) {
	overlay.config.Visible = visible
	overlay.applyVisibility()
}

// UpdateConfig updates overlay visuals.
func (overlay *Window) UpdateConfig(config Config) {
	overlay.config = config
	overlay.background.FillColor = color.NRGBA{A: config.Opacity}
	canvas.Refresh(overlay.background)
	overlay.applyVisibility()
}

// Description returns the text currently shown.
func (overlay *Window) Description() string { return overlay.description.Text }

// Visible reports whether the overlay is configured to be shown.
func (overlay *Window) Visible() bool { return overlay.config.Visible }

func (overlay *Window) applyVisibility() {
	if overlay.config.Visible {
		overlay.window.Show()
		return
	}
	overlay.window.Hide()
}

// OpacityToAlpha maps a 0..1 opacity to an alpha channel value.
func OpacityToAlpha(opacity float64) uint8 {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	return uint8(opacity * 255)
}

// stackLayout places title, description and status top to bottom.
type stackLayout struct{}

const overlayPadding = float32(8)

func (layout *stackLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) < 3 {
		return
	}
	width := size.Width - overlayPadding*2
	if width < 0 {
		width = 0
	}
	y := overlayPadding
	for _, object := range objects[:3] {
		objectSize := object.MinSize()
		object.Move(fyne.NewPos(overlayPadding, y))
		object.Resize(fyne.NewSize(width, objectSize.Height))
		y += objectSize.Height + 4
	}
}

func (layout *stackLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	if len(objects) < 3 {
		return fyne.NewSize(0, 0)
	}
	var width, height float32
	for _, object := range objects[:3] {
		objectSize := object.MinSize()
		if objectSize.Width > width {
			width = objectSize.Width
		}
		height += objectSize.Height + 4
	}
	return fyne.NewSize(width+overlayPadding*2, height+overlayPadding*2)
}
