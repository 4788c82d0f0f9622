package logx_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gaspardpetit/focushost/internal/logx"
	"github.com/rs/zerolog"
)

func TestConfigureLogLevel(t *testing.T) {
	defer logx.Configure("info")

	logx.Configure("all")
	if zerolog.GlobalLevel() != zerolog.TraceLevel {
		t.Fatalf("expected trace level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("WARNING")
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("none")
	if zerolog.GlobalLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("bogus")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
}

func TestOpenFile(t *testing.T) {
	defer logx.Configure("info")
	logx.Configure("info")

	path := filepath.Join(t.TempDir(), "host.log")
	f, err := logx.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logx.Log.Info().Str("k", "v").Msg("hello file")
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "hello file") || !strings.Contains(string(b), "k=v") {
		t.Fatalf("unexpected log contents: %q", b)
	}
}
