package preferences

import "notiontimer/internal/core/model"

// Settings defines editable user preferences.
type Settings struct {
	ShowOverlay   bool
	RemoteControl bool
	BroadcastPort int
	LaunchAtLogin bool

	OverlayOpacity float64
}

// DefaultSettings returns default settings for NotionTimer.
func DefaultSettings() Settings {
	return Settings{
		ShowOverlay:    true,
		RemoteControl:  false,
		BroadcastPort:  8080,
		OverlayOpacity: 0.85,
	}
}

// HostConfig converts settings to the host behavior switches.
func (settings Settings) HostConfig() model.HostConfig {
	return model.HostConfig{
		RemoteControl: settings.RemoteControl,
		ShowOverlay:   settings.ShowOverlay,
	}
}

// ValidPort reports whether port can be bound by the broadcast server.
func ValidPort(port int) bool {
	return port > 0 && port <= 65535
}
