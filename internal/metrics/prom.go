package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "focushost_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "host"},
		},
		[]string{"date", "sha", "version"},
	)

	framesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focushost_frames_read_total",
			Help: "Frames decoded from the browser",
		},
	)

	framesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focushost_frames_written_total",
			Help: "Frames written to the browser",
		},
	)

	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focushost_framing_errors_total",
			Help: "Malformed frames received from the browser",
		},
		[]string{"kind"},
	)

	encodingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focushost_encoding_errors_total",
			Help: "Responses that could not be encoded for the browser",
		},
	)

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focushost_requests_total",
			Help: "Handler invocations by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focushost_request_duration_seconds",
			Help:    "Handler invocation duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focushost_requests_in_flight",
			Help: "Requests dispatched but not yet answered",
		},
	)

	workerRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focushost_worker_starts_total",
			Help: "Persistent worker process starts",
		},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, framesRead, framesWritten, framingErrors, encodingErrors, requests, requestDuration, inflight, workerRestarts)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// FrameRead counts a decoded frame.
func FrameRead() { framesRead.Inc() }

// FrameWritten counts a frame sent to the browser.
func FrameWritten() { framesWritten.Inc() }

// FramingError counts a malformed frame; kind is "invalid_json" or
// "too_large".
func FramingError(kind string) { framingErrors.WithLabelValues(kind).Inc() }

// EncodingError counts a response that failed to encode.
func EncodingError() { encodingErrors.Inc() }

// RecordRequest records one handler invocation.
func RecordRequest(command, outcome string, d time.Duration) {
	command = CommandLabel(command)
	requests.WithLabelValues(command, outcome).Inc()
	requestDuration.WithLabelValues(command).Observe(d.Seconds())
}

// SetInFlight sets the in-flight request gauge.
func SetInFlight(n int64) { inflight.Set(float64(n)) }

// WorkerStarted counts a persistent worker start.
func WorkerStarted() { workerRestarts.Inc() }

// CommandLabel bounds label cardinality: commands come from the browser,
// so anything that does not look like an identifier collapses to "other".
func CommandLabel(command string) string {
	if command == "" || len(command) > 64 {
		return "other"
	}
	for _, c := range command {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-', c == '.':
		default:
			return "other"
		}
	}
	return command
}
