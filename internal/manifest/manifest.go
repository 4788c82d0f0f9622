// Package manifest writes the native messaging host manifest that tells a
// browser which executable to launch for the host name.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// Browser identifies where a manifest is installed.
type Browser string

const (
	Chrome   Browser = "chrome"
	Chromium Browser = "chromium"
	Edge     Browser = "edge"
	Brave    Browser = "brave"
	Firefox  Browser = "firefox"
)

// Browsers lists the supported browsers.
var Browsers = []Browser{Chrome, Chromium, Edge, Brave, Firefox}

// ParseBrowser maps a browser name to a Browser.
func ParseBrowser(s string) (Browser, error) {
	b := Browser(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Browsers {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown browser %q", s)
}

// Manifest is the host manifest file. Chromium based browsers read
// AllowedOrigins, Firefox reads AllowedExtensions.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
}

var hostName = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// ValidateName checks a host name against the browsers' naming rule:
// lowercase alphanumerics and underscores separated by dots.
func ValidateName(name string) error {
	if !hostName.MatchString(name) {
		return fmt.Errorf("invalid host name %q: use lowercase letters, digits, '_' and '.'", name)
	}
	return nil
}

// New builds the manifest of host name for browser b. extensions are
// extension ids (Chromium) or addon ids (Firefox) allowed to connect.
func New(b Browser, name, description, path string, extensions []string) (Manifest, error) {
	if err := ValidateName(name); err != nil {
		return Manifest{}, err
	}
	if !filepath.IsAbs(path) {
		return Manifest{}, fmt.Errorf("host path must be absolute, got %q", path)
	}
	if len(extensions) == 0 {
		return Manifest{}, errors.New("at least one extension id is required")
	}
	m := Manifest{Name: name, Description: description, Path: path, Type: "stdio"}
	for _, id := range extensions {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if b == Firefox {
			m.AllowedExtensions = append(m.AllowedExtensions, id)
			continue
		}
		if !strings.HasPrefix(id, "chrome-extension://") {
			id = "chrome-extension://" + id + "/"
		}
		m.AllowedOrigins = append(m.AllowedOrigins, id)
	}
	if len(m.AllowedOrigins) == 0 && len(m.AllowedExtensions) == 0 {
		return Manifest{}, errors.New("at least one extension id is required")
	}
	return m, nil
}

// DefaultDir returns the per-user manifest directory of browser b on the
// current OS.
func DefaultDir(b Browser) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return ResolveDir(runtime.GOOS, home, os.Getenv("LOCALAPPDATA"), b)
}

// ResolveDir returns the per-user manifest directory of browser b for the
// given OS and base directories. On Windows the directory is ours to pick;
// the browser finds the file through the registry.
func ResolveDir(goos, home, localAppData string, b Browser) (string, error) {
	switch goos {
	case "darwin":
		support := filepath.Join(home, "Library", "Application Support")
		switch b {
		case Chrome:
			return filepath.Join(support, "Google", "Chrome", "NativeMessagingHosts"), nil
		case Chromium:
			return filepath.Join(support, "Chromium", "NativeMessagingHosts"), nil
		case Edge:
			return filepath.Join(support, "Microsoft Edge", "NativeMessagingHosts"), nil
		case Brave:
			return filepath.Join(support, "BraveSoftware", "Brave-Browser", "NativeMessagingHosts"), nil
		case Firefox:
			return filepath.Join(support, "Mozilla", "NativeMessagingHosts"), nil
		}
	case "windows":
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}
		localAppData = strings.TrimRight(localAppData, "\\/")
		for _, known := range Browsers {
			if b == known {
				return filepath.Join(localAppData, "focushost", "manifests", string(b)), nil
			}
		}
	default:
		switch b {
		case Chrome:
			return filepath.Join(home, ".config", "google-chrome", "NativeMessagingHosts"), nil
		case Chromium:
			return filepath.Join(home, ".config", "chromium", "NativeMessagingHosts"), nil
		case Edge:
			return filepath.Join(home, ".config", "microsoft-edge", "NativeMessagingHosts"), nil
		case Brave:
			return filepath.Join(home, ".config", "BraveSoftware", "Brave-Browser", "NativeMessagingHosts"), nil
		case Firefox:
			return filepath.Join(home, ".mozilla", "native-messaging-hosts"), nil
		}
	}
	return "", fmt.Errorf("unknown browser %q", b)
}

// Write stores m as <dir>/<name>.json and returns the file path.
func Write(dir string, m Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest dir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, m.Name+".json")
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// Install writes m to the default location of browser b and, where the
// browser looks manifests up in the registry, registers it.
func Install(b Browser, m Manifest) (string, error) {
	dir, err := DefaultDir(b)
	if err != nil {
		return "", err
	}
	path, err := Write(dir, m)
	if err != nil {
		return "", err
	}
	if err := register(b, m.Name, path); err != nil {
		return path, fmt.Errorf("register manifest: %w", err)
	}
	return path, nil
}
