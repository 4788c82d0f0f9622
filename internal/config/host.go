package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gaspardpetit/focushost/internal/bridge"
	"github.com/gaspardpetit/focushost/internal/invoker"
)

// HostConfig holds configuration for the native messaging host.
type HostConfig struct {
	ConfigFile string `yaml:"-"`
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`

	// Handler serves every command without a route of its own.
	Handler invoker.Config            `yaml:"handler"`
	Routes  map[string]invoker.Config `yaml:"routes"`

	MaxConcurrency int           `yaml:"max_concurrency"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
	MaxFrameSize   uint32        `yaml:"max_frame_size"`

	MetricsAddr string `yaml:"metrics_addr"`
	StatusAddr  string `yaml:"status_addr"`
}

// BindFlags populates the struct with defaults from environment variables and
// binds command line flags so main can call flag.Parse().
func (c *HostConfig) BindFlags() {
	c.BindFlagSet(flag.CommandLine)
}

// BindFlagSet is BindFlags for an explicit flag set.
func (c *HostConfig) BindFlagSet(fs *flag.FlagSet) {
	c.ConfigFile = getEnv("FOCUSHOST_CONFIG", DefaultConfigPath("host.yaml"))
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFile = getEnv("FOCUSHOST_LOG_FILE", "")

	c.Handler.Command = getEnv("FOCUSHOST_HANDLER", "")
	c.Handler.Args = strings.Fields(getEnv("FOCUSHOST_HANDLER_ARGS", ""))
	c.Handler.Dir = getEnv("FOCUSHOST_HANDLER_DIR", "")
	c.Handler.Mode = getEnv("FOCUSHOST_HANDLER_MODE", invoker.ModePerRequest)
	if d, err := time.ParseDuration(getEnv("FOCUSHOST_HANDLER_TIMEOUT", "30s")); err == nil {
		c.Handler.Timeout = d
	} else {
		c.Handler.Timeout = invoker.DefaultTimeout
	}
	if v, err := strconv.Atoi(getEnv("FOCUSHOST_MAX_CONCURRENCY", "1")); err == nil {
		c.MaxConcurrency = v
	} else {
		c.MaxConcurrency = 1
	}
	if d, err := time.ParseDuration(getEnv("FOCUSHOST_SHUTDOWN_GRACE", "1s")); err == nil {
		c.ShutdownGrace = d
	} else {
		c.ShutdownGrace = bridge.DefaultShutdownGrace
	}
	c.MetricsAddr = portAddr(getEnv("FOCUSHOST_METRICS_PORT", ""))
	c.StatusAddr = portAddr(getEnv("FOCUSHOST_STATUS_ADDR", ""))

	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "host config file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "append logs to this file instead of stderr")
	fs.StringVar(&c.Handler.Command, "handler", c.Handler.Command, "path of the handler executable")
	fs.Func("handler-arg", "argument passed to the handler; repeat for several", func(v string) error {
		c.Handler.Args = append(c.Handler.Args, v)
		return nil
	})
	fs.Func("handler-env", "KEY=VALUE added to the handler environment; repeat for several", func(v string) error {
		if !strings.Contains(v, "=") {
			return fmt.Errorf("expected KEY=VALUE, got %q", v)
		}
		c.Handler.Env = append(c.Handler.Env, v)
		return nil
	})
	fs.StringVar(&c.Handler.Dir, "handler-dir", c.Handler.Dir, "working directory of the handler")
	fs.StringVar(&c.Handler.Mode, "handler-mode", c.Handler.Mode, "handler mode: per-request or persistent")
	fs.DurationVar(&c.Handler.Timeout, "handler-timeout", c.Handler.Timeout, "maximum duration of one handler invocation")
	fs.IntVar(&c.MaxConcurrency, "max-concurrency", c.MaxConcurrency, "requests handled at once; 1 answers in request order")
	fs.DurationVar(&c.ShutdownGrace, "shutdown-grace", c.ShutdownGrace, "time allowed for in-flight requests once the browser closes the channel")
	fs.Func("metrics-port", "Prometheus metrics listen address or port (disabled when empty; e.g. 127.0.0.1:9090 or 9090)", func(v string) error {
		c.MetricsAddr = portAddr(v)
		return nil
	})
	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "status server listen address (disabled when empty; e.g. 127.0.0.1:4555)")
}

// LoadFile populates the config from a YAML file. Fields already set remain unless
// overwritten by corresponding entries in the file.
func (c *HostConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	c.MetricsAddr = portAddr(c.MetricsAddr)
	return nil
}

// ApplyDefaults replaces zero values that mean "use the default" so every
// consumer sees the same effective settings.
func (c *HostConfig) ApplyDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 1
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = bridge.DefaultShutdownGrace
	}
}

// Validate reports settings the host cannot start with.
func (c *HostConfig) Validate() error {
	var errs []error
	if c.Handler.Command == "" && len(c.Routes) == 0 {
		errs = append(errs, errors.New("no handler configured: set -handler or routes in the config file"))
	}
	if c.Handler.Command != "" {
		if err := validateHandler("handler", c.Handler); err != nil {
			errs = append(errs, err)
		}
	}
	for cmd, h := range c.Routes {
		if h.Command == "" {
			errs = append(errs, fmt.Errorf("route %q: command is required", cmd))
			continue
		}
		if err := validateHandler("route "+strconv.Quote(cmd), h); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("max concurrency must not be negative, got %d", c.MaxConcurrency))
	}
	if c.ShutdownGrace < 0 {
		errs = append(errs, fmt.Errorf("shutdown grace must not be negative, got %s", c.ShutdownGrace))
	}
	return errors.Join(errs...)
}

func validateHandler(name string, h invoker.Config) error {
	switch h.Mode {
	case "", invoker.ModePerRequest, invoker.ModePersistent:
	default:
		return fmt.Errorf("%s: unknown mode %q", name, h.Mode)
	}
	if h.Timeout < 0 {
		return fmt.Errorf("%s: timeout must not be negative", name)
	}
	return nil
}

// portAddr turns a bare port into a listen address.
func portAddr(v string) string {
	if v != "" && !strings.Contains(v, ":") {
		return ":" + v
	}
	return v
}

func getEnv(k, d string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return d
}
