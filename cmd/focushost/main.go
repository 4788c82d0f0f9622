package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gaspardpetit/focushost/internal/bridge"
	"github.com/gaspardpetit/focushost/internal/config"
	"github.com/gaspardpetit/focushost/internal/invoker"
	"github.com/gaspardpetit/focushost/internal/logx"
	"github.com/gaspardpetit/focushost/internal/manifest"
	"github.com/gaspardpetit/focushost/internal/metrics"
	"github.com/gaspardpetit/focushost/internal/status"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	install := flag.String("install", "", "write the host manifest for a browser (chrome, chromium, edge, brave, firefox) and exit")
	hostName := flag.String("host-name", "com.focushost.bridge", "native messaging host name used by -install")
	extensions := flag.String("extension-id", "", "comma-separated extension ids allowed to connect, used by -install")
	var cfg config.HostConfig
	cfg.BindFlags()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "focushost version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("focushost version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	logx.Configure(cfg.LogLevel)
	var logFile *os.File
	if cfg.LogFile != "" {
		f, err := logx.OpenFile(cfg.LogFile)
		if err != nil {
			logx.Log.Fatal().Err(err).Str("path", cfg.LogFile).Msg("open log file")
		}
		logFile = f
	}

	if *install != "" {
		code := 0
		if err := installManifest(*install, *hostName, *extensions); err != nil {
			logx.Log.Error().Err(err).Msg("install manifest")
			code = 1
		}
		if logFile != nil {
			_ = logFile.Close()
		}
		os.Exit(code)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}
	code := run(cfg)
	if logFile != nil {
		_ = logFile.Close()
	}
	os.Exit(code)
}

func run(cfg config.HostConfig) int {
	// The browser passes the caller's origin as the first argument.
	if args := flag.Args(); len(args) > 0 {
		logx.Log.Info().Str("origin", args[0]).Msg("launched by browser")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	mux := bridge.NewMux()
	var runners []invoker.Runner
	if cfg.Handler.Command != "" {
		r := invoker.NewRunner(cfg.Handler)
		mux.SetFallback(r)
		runners = append(runners, r)
	}
	for command, hc := range cfg.Routes {
		r := invoker.NewRunner(hc)
		mux.Register(command, r)
		runners = append(runners, r)
	}
	defer func() {
		for _, r := range runners {
			if err := r.Close(); err != nil {
				logx.Log.Warn().Err(err).Msg("close handler")
			}
		}
	}()

	b := bridge.New(os.Stdin, os.Stdout, mux, bridge.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		ShutdownGrace:  cfg.ShutdownGrace,
		MaxFrameSize:   cfg.MaxFrameSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.StatusAddr != "" {
		routes := mux.Commands()
		sort.Strings(routes)
		h := status.NewHandler(status.Options{
			Version:        status.VersionInfo{Version: version, BuildSHA: buildSHA, BuildDate: buildDate},
			HandlerMode:    handlerMode(cfg.Handler),
			Routes:         routes,
			MaxConcurrency: cfg.MaxConcurrency,
			Stats:          b,
			Gatherer:       reg,
		})
		addr, err := status.Start(ctx, cfg.StatusAddr, h)
		if err != nil {
			logx.Log.Error().Err(err).Str("addr", cfg.StatusAddr).Msg("status server disabled")
		} else {
			logx.Log.Info().Str("addr", addr).Msg("status server listening")
		}
	}
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.StatusAddr {
		addr, err := status.Start(ctx, cfg.MetricsAddr, status.MetricsHandler(reg))
		if err != nil {
			logx.Log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server disabled")
		} else {
			logx.Log.Info().Str("addr", addr).Msg("metrics server listening")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if b.Stats().Draining {
				logx.Log.Warn().Msg("termination requested")
				cancel()
				return
			}
			b.Drain()
			logx.Log.Info().Dur("timeout", cfg.ShutdownGrace).Msg("draining; send SIGTERM again to terminate immediately")
			go func() {
				waitCtx, stop := context.WithTimeout(ctx, cfg.ShutdownGrace)
				defer stop()
				if !b.WaitIdle(waitCtx) {
					logx.Log.Warn().Msg("drain timeout exceeded; terminating")
				}
				cancel()
			}()
		}
	}()

	logx.Log.Info().
		Str("version", version).
		Str("handler", cfg.Handler.Command).
		Str("mode", handlerMode(cfg.Handler)).
		Int("routes", len(cfg.Routes)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Msg("host starting")

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logx.Log.Error().Err(err).Msg("bridge stopped")
		return 1
	}
	return 0
}

func handlerMode(h invoker.Config) string {
	if h.Mode == "" {
		return invoker.ModePerRequest
	}
	return h.Mode
}

func installManifest(browser, name, extensions string) error {
	b, err := manifest.ParseBrowser(browser)
	if err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	m, err := manifest.New(b, name, "Focus management native messaging host", exe, strings.Split(extensions, ","))
	if err != nil {
		return err
	}
	path, err := manifest.Install(b, m)
	if err != nil {
		return err
	}
	logx.Log.Info().Str("browser", string(b)).Str("path", path).Msg("manifest installed")
	fmt.Println(path)
	return nil
}
