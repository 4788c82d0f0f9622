package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	SetBuildInfo("1.0.0", "abc", "2024-01-01")
	FrameRead()
	FrameWritten()
	FramingError("invalid_json")
	EncodingError()
	RecordRequest("system_info", "succeeded", 100*time.Millisecond)
	RecordRequest("bad command!", "exit_code", time.Millisecond)
	SetInFlight(3)
	WorkerStarted()

	if v := testutil.ToFloat64(requests.WithLabelValues("system_info", "succeeded")); v != 1 {
		t.Fatalf("requests: %v", v)
	}
	if v := testutil.ToFloat64(requests.WithLabelValues("other", "exit_code")); v != 1 {
		t.Fatalf("other requests: %v", v)
	}
	if v := testutil.ToFloat64(framingErrors.WithLabelValues("invalid_json")); v != 1 {
		t.Fatalf("framing errors: %v", v)
	}
	if v := testutil.ToFloat64(inflight); v != 3 {
		t.Fatalf("in flight: %v", v)
	}
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("2024-01-01", "abc", "1.0.0")); v != 1 {
		t.Fatalf("build info: %v", v)
	}
	if n := testutil.CollectAndCount(requestDuration); n != 2 {
		t.Fatalf("duration series: %d", n)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP focushost_frames_written_total Frames written to the browser
# TYPE focushost_frames_written_total counter
focushost_frames_written_total 1
`), "focushost_frames_written_total"); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestCommandLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"system_info", "system_info"},
		{"focus.start", "focus.start"},
		{"", "other"},
		{"has space", "other"},
		{strings.Repeat("a", 65), "other"},
	}
	for _, c := range cases {
		if got := CommandLabel(c.in); got != c.want {
			t.Errorf("CommandLabel(%q) = %q want %q", c.in, got, c.want)
		}
	}
}
