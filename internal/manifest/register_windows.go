//go:build windows

package manifest

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

var registryKeys = map[Browser]string{
	Chrome:   `Software\Google\Chrome\NativeMessagingHosts`,
	Chromium: `Software\Chromium\NativeMessagingHosts`,
	Edge:     `Software\Microsoft\Edge\NativeMessagingHosts`,
	Brave:    `Software\BraveSoftware\Brave-Browser\NativeMessagingHosts`,
	Firefox:  `Software\Mozilla\NativeMessagingHosts`,
}

// register points the browser's per-user registry key at the manifest.
func register(b Browser, name, manifestPath string) error {
	base, ok := registryKeys[b]
	if !ok {
		return fmt.Errorf("unknown browser %q", b)
	}
	k, _, err := registry.CreateKey(registry.CURRENT_USER, base+`\`+name, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetStringValue("", manifestPath)
}
