package platform

import (
	"fmt"
	"os"
	"strings"
)

// LoginItem registers the application to start when the user logs in.
type LoginItem struct {
	appName  string
	execPath string
	// baseDir replaces the per-user location the entry is written under.
	baseDir string
}

// NewLoginItem describes a login item for the running executable.
func NewLoginItem(appName string) (*LoginItem, error) {
	if strings.TrimSpace(appName) == "" {
		return nil, fmt.Errorf("login item: app name is empty")
	}
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("login item: resolve executable: %w", err)
	}
	return &LoginItem{appName: appName, execPath: execPath}, nil
}

// Apply enables or disables the login item. Disabling an absent item is not
// an error.
func (item *LoginItem) Apply(enabled bool) error {
	if enabled {
		if err := item.enable(); err != nil {
			return fmt.Errorf("enable login item: %w", err)
		}
		return nil
	}
	if err := item.disable(); err != nil {
		return fmt.Errorf("disable login item: %w", err)
	}
	return nil
}

func slug(appName string) string {
	name := strings.ToLower(strings.TrimSpace(appName))
	return strings.ReplaceAll(name, " ", "-")
}
