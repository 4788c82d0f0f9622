// Package status serves the host's loopback HTTP endpoints: /status,
// /version, /healthz and /metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaspardpetit/focushost/internal/bridge"
	"github.com/gaspardpetit/focushost/internal/logx"
)

// VersionInfo identifies the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildSHA  string `json:"build_sha"`
	BuildDate string `json:"build_date"`
}

// State is the body of /status.
type State struct {
	State          string       `json:"state"`
	HandlerMode    string       `json:"handler_mode"`
	Routes         []string     `json:"routes,omitempty"`
	MaxConcurrency int          `json:"max_concurrency"`
	StartedAt      time.Time    `json:"started_at"`
	Uptime         string       `json:"uptime"`
	Version        string       `json:"version"`
	Bridge         bridge.Stats `json:"bridge"`
}

// StatsSource reports bridge counters; *bridge.Bridge implements it.
type StatsSource interface {
	Stats() bridge.Stats
}

// Options describe what the status endpoints report.
type Options struct {
	Version        VersionInfo
	HandlerMode    string
	Routes         []string
	MaxConcurrency int
	Stats          StatsSource
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
}

type server struct {
	opts    Options
	started time.Time
}

// NewHandler returns the router serving the status endpoints.
func NewHandler(opts Options) http.Handler {
	routes := append([]string(nil), opts.Routes...)
	sort.Strings(routes)
	opts.Routes = routes
	s := &server{opts: opts, started: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", s.status)
	r.Get("/version", s.version)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) snapshot() State {
	st := State{
		State:          "serving",
		HandlerMode:    s.opts.HandlerMode,
		Routes:         s.opts.Routes,
		MaxConcurrency: s.opts.MaxConcurrency,
		StartedAt:      s.started,
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Version:        s.opts.Version.Version,
	}
	if s.opts.Stats != nil {
		st.Bridge = s.opts.Stats.Stats()
		if st.Bridge.Draining {
			st.State = "draining"
		}
	}
	return st
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.snapshot())
}

func (s *server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.opts.Version)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves h on addr until ctx is cancelled. It returns the address it
// is listening on.
func Start(ctx context.Context, addr string, h http.Handler) (string, error) {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	actual := ln.Addr().String()
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Log.Error().Err(err).Str("addr", actual).Msg("status server error")
		}
	}()
	return actual, nil
}

// MetricsHandler serves only /metrics from g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}
