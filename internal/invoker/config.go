package invoker

import "time"

const (
	// ModePerRequest starts one handler process per request.
	ModePerRequest = "per-request"
	// ModePersistent keeps one handler process running.
	ModePersistent = "persistent"

	// DefaultTimeout bounds a single invocation.
	DefaultTimeout = 30 * time.Second

	defaultMaxStderr = 8 * 1024
	defaultSource    = "handler"
)

// Config describes how to run the downstream handler.
type Config struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Env     []string      `yaml:"env"`
	Dir     string        `yaml:"dir"`
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`

	// Source is reported in the envelopes built by the invoker.
	Source string `yaml:"source"`

	// MaxStderr caps how much handler stderr is kept for error messages.
	MaxStderr int `yaml:"max_stderr"`
}

func (c Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) source() string {
	if c.Source == "" {
		return defaultSource
	}
	return c.Source
}

func (c Config) maxStderr() int {
	if c.MaxStderr <= 0 {
		return defaultMaxStderr
	}
	return c.MaxStderr
}
