package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	for _, name := range []string{"com.example.focus", "focus_host", "a.b_c.d1"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("%q should be valid: %v", name, err)
		}
	}
	for _, name := range []string{"", "Com.Example", "com..example", ".com", "com.example.", "focus-host"} {
		if err := ValidateName(name); err == nil {
			t.Errorf("%q should be rejected", name)
		}
	}
}

func TestNew(t *testing.T) {
	m, err := New(Chrome, "com.example.focus", "Focus host", "/opt/focushost", []string{"abcdef", "chrome-extension://ghijkl/"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if m.Type != "stdio" || m.Path != "/opt/focushost" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if strings.Join(m.AllowedOrigins, ",") != "chrome-extension://abcdef/,chrome-extension://ghijkl/" {
		t.Fatalf("allowed origins: %v", m.AllowedOrigins)
	}

	ff, err := New(Firefox, "com.example.focus", "Focus host", "/opt/focushost", []string{"focus@example.com"})
	if err != nil {
		t.Fatalf("new firefox: %v", err)
	}
	if len(ff.AllowedOrigins) != 0 || len(ff.AllowedExtensions) != 1 || ff.AllowedExtensions[0] != "focus@example.com" {
		t.Fatalf("firefox manifest: %+v", ff)
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		host string
		path string
		ids  []string
	}{
		{name: "bad host name", host: "Bad Name", path: "/opt/h", ids: []string{"x"}},
		{name: "relative path", host: "com.example.focus", path: "focushost", ids: []string{"x"}},
		{name: "no extension", host: "com.example.focus", path: "/opt/h"},
		{name: "blank extension", host: "com.example.focus", path: "/opt/h", ids: []string{" "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(Chrome, tt.host, "d", tt.path, tt.ids); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestResolveDir(t *testing.T) {
	tests := []struct {
		goos    string
		browser Browser
		want    string
	}{
		{goos: "linux", browser: Chrome, want: "/home/u/.config/google-chrome/NativeMessagingHosts"},
		{goos: "linux", browser: Chromium, want: "/home/u/.config/chromium/NativeMessagingHosts"},
		{goos: "linux", browser: Firefox, want: "/home/u/.mozilla/native-messaging-hosts"},
		{goos: "darwin", browser: Chrome, want: "/home/u/Library/Application Support/Google/Chrome/NativeMessagingHosts"},
		{goos: "darwin", browser: Edge, want: "/home/u/Library/Application Support/Microsoft Edge/NativeMessagingHosts"},
		{goos: "windows", browser: Brave, want: "C:/Users/u/AppData/Local/focushost/manifests/brave"},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+string(tt.browser), func(t *testing.T) {
			local := ""
			if tt.goos == "windows" {
				local = "C:\\Users\\u\\AppData\\Local\\"
			}
			got, err := ResolveDir(tt.goos, "/home/u", local, tt.browser)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got = strings.ReplaceAll(got, "\\", "/"); got != tt.want {
				t.Errorf("got %q want %q", got, tt.want)
			}
		})
	}
	if _, err := ResolveDir("linux", "/home/u", "", "netscape"); err == nil {
		t.Fatalf("unknown browser should fail")
	}
}

func TestParseBrowser(t *testing.T) {
	if b, err := ParseBrowser(" Chrome "); err != nil || b != Chrome {
		t.Fatalf("got %q %v", b, err)
	}
	if _, err := ParseBrowser("opera"); err == nil {
		t.Fatalf("expected error for unsupported browser")
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "NativeMessagingHosts")
	m, err := New(Chrome, "com.example.focus", "Focus host", "/opt/focushost", []string{"abc"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	path, err := Write(dir, m)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "com.example.focus.json" {
		t.Fatalf("unexpected file name %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"name", "description", "path", "type", "allowed_origins"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("manifest is missing %q: %s", key, b)
		}
	}
	if _, ok := doc["allowed_extensions"]; ok {
		t.Errorf("chrome manifest must not carry allowed_extensions")
	}
}
