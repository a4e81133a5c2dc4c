//go:build windows

package platform

import (
	"fmt"
	"os/exec"
	"strings"
)

const registryRunKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

func (item *LoginItem) enable() error {
	quoted := `"` + strings.Trim(item.execPath, `"`) + `"`
	return reg("add", registryRunKey, "/v", item.appName, "/t", "REG_SZ", "/d", quoted, "/f")
}

func (item *LoginItem) disable() error {
	if err := reg("query", registryRunKey, "/v", item.appName); err != nil {
		return nil
	}
	return reg("delete", registryRunKey, "/v", item.appName, "/f")
}

func reg(args ...string) error {
	output, err := exec.Command("reg", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("reg %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}
