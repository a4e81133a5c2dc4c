package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"notiontimer/internal/ui/preferences"
)

const settingsFileName = "settings.yaml"

type yamlSettings struct {
	ShowOverlay    *bool   `yaml:"show_overlay"`
	RemoteControl  bool    `yaml:"remote_control"`
	BroadcastPort  int     `yaml:"broadcast_port"`
	LaunchAtLogin  bool    `yaml:"launch_at_login"`
	OverlayOpacity float64 `yaml:"overlay_opacity"`
}

// Store reads and writes preferences under a base config directory.
type Store struct {
	path string
}

// NewStore places the settings file in the user config directory for appName.
func NewStore(appName string) (*Store, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user config dir: %w", err)
	}
	return NewStoreAt(filepath.Join(configDir, appName)), nil
}

// NewStoreAt places the settings file in dir.
func NewStoreAt(dir string) *Store {
	return &Store{path: filepath.Join(dir, settingsFileName)}
}

// Path returns the settings file location.
func (store *Store) Path() string { return store.path }

// Load reads user preferences from YAML.
// If the file does not exist, default settings are returned.
func (store *Store) Load() (preferences.Settings, error) {
	settings := preferences.DefaultSettings()
	rawData, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	var fileData yamlSettings
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}

	applyYamlSettings(&settings, fileData)
	return settings, nil
}

// Save writes user preferences to YAML.
func (store *Store) Save(settings preferences.Settings) error {
	if err := os.MkdirAll(filepath.Dir(store.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	showOverlay := settings.ShowOverlay
	fileData := yamlSettings{
		ShowOverlay:    &showOverlay,
		RemoteControl:  settings.RemoteControl,
		BroadcastPort:  settings.BroadcastPort,
		LaunchAtLogin:  settings.LaunchAtLogin,
		OverlayOpacity: settings.OverlayOpacity,
	}

	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	if err := os.WriteFile(store.path, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

func applyYamlSettings(settings *preferences.Settings, fileData yamlSettings) {
	if fileData.ShowOverlay != nil {
		settings.ShowOverlay = *fileData.ShowOverlay
	}
	if preferences.ValidPort(fileData.BroadcastPort) {
		settings.BroadcastPort = fileData.BroadcastPort
	}
	if fileData.OverlayOpacity >= 0.5 && fileData.OverlayOpacity <= 1 {
		settings.OverlayOpacity = fileData.OverlayOpacity
	}
	settings.RemoteControl = fileData.RemoteControl
	settings.LaunchAtLogin = fileData.LaunchAtLogin
}
