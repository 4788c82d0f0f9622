package invoker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SpawnError reports a handler that could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn error: cannot start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitCodeError reports a handler that exited with a non-zero status.
// Code is -1 when the process was killed by a signal.
type ExitCodeError struct {
	Code   int
	Stderr string
}

func (e *ExitCodeError) Error() string {
	msg := fmt.Sprintf("handler exited with code %d", e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ParseError reports handler output that is not a single JSON document.
type ParseError struct {
	Err    error
	Output string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: handler output is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TimeoutError reports a handler that was killed after running too long.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("handler timed out after %s", e.After)
}

// ReplyError carries a failure reported by a persistent worker for one
// request. The worker itself keeps running.
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string { return e.Message }

// Outcome names the terminal state for err, for logs and metrics.
func Outcome(err error) string {
	var (
		spawnErr   *SpawnError
		exitErr    *ExitCodeError
		parseErr   *ParseError
		timeoutErr *TimeoutError
		replyErr   *ReplyError
	)
	switch {
	case err == nil:
		return "succeeded"
	case errors.As(err, &spawnErr):
		return "spawn_error"
	case errors.As(err, &exitErr):
		return "exit_code"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &replyErr):
		return "handler_error"
	default:
		return "error"
	}
}
