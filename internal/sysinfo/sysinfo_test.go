package sysinfo

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
)

func TestCollect(t *testing.T) {
	info := Collect(context.Background())
	if info.Platform != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Fatalf("unexpected platform: %+v", info)
	}
	if info.CPUs < 1 {
		t.Fatalf("expected at least one cpu, got %d", info.CPUs)
	}
	b, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["platform"] != runtime.GOOS {
		t.Fatalf("platform missing from %s", b)
	}
}

func TestCollectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	info := Collect(ctx)
	if info.Platform == "" || info.CPUs < 1 {
		t.Fatalf("basic fields must survive failed probes: %+v", info)
	}
}
