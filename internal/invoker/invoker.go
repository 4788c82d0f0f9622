package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/gaspardpetit/focushost/internal/logx"
	"github.com/gaspardpetit/focushost/internal/metrics"
	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

// waitDelay bounds how long Wait keeps draining pipes after the handler
// has been killed.
const waitDelay = time.Second

// Invoker runs the handler once per request.
type Invoker struct {
	cfg Config
}

// New returns an Invoker for cfg.
func New(cfg Config) *Invoker {
	return &Invoker{cfg: cfg}
}

// Handle runs the handler for req and always returns an envelope.
func (inv *Invoker) Handle(ctx context.Context, req nativemsg.Request) nativemsg.Response {
	resp, err := inv.Invoke(ctx, req)
	if err != nil {
		return nativemsg.Fail(req.RequestID, err, inv.cfg.source())
	}
	return resp
}

// Invoke runs the handler for req. The returned error is one of
// *SpawnError, *ExitCodeError, *ParseError or *TimeoutError, or the
// context error when ctx was cancelled.
func (inv *Invoker) Invoke(ctx context.Context, req nativemsg.Request) (nativemsg.Response, error) {
	start := time.Now()
	c := &call{requestID: req.RequestID, command: req.Command}
	resp, err := inv.run(ctx, c, req)
	metrics.RecordRequest(req.Command, Outcome(err), time.Since(start))

	ev := logx.Log.Debug()
	if err != nil {
		ev = logx.Log.Warn().Err(err)
	}
	ev.Str("request_id", req.RequestID).
		Str("command", req.Command).
		Str("outcome", Outcome(err)).
		Dur("elapsed", time.Since(start)).
		Msg("handler finished")
	return resp, err
}

func (inv *Invoker) run(ctx context.Context, c *call, req nativemsg.Request) (nativemsg.Response, error) {
	payload, err := req.Payload()
	if err != nil {
		return nativemsg.Response{}, fmt.Errorf("encode request: %w", err)
	}

	timeout := inv.cfg.timeout()
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.cfg.Command, inv.cfg.Args...)
	cmd.Env = append(os.Environ(), inv.cfg.Env...)
	cmd.Dir = inv.cfg.Dir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	stderr := newTailBuffer(inv.cfg.maxStderr())
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	c.moveTo(StateSpawning)
	if err := cmd.Start(); err != nil {
		c.moveTo(StateFailed)
		return nativemsg.Response{}, &SpawnError{Command: inv.cfg.Command, Err: err}
	}
	c.moveTo(StateRunning)
	logx.Log.Debug().
		Str("request_id", req.RequestID).
		Int("pid", cmd.Process.Pid).
		Msg("handler started")

	waitErr := cmd.Wait()
	if s := stderr.String(); s != "" {
		logx.Log.Debug().Str("request_id", req.RequestID).Str("stderr", s).Msg("handler diagnostics")
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		c.moveTo(StateFailed)
		return nativemsg.Response{}, &TimeoutError{After: timeout}
	case ctx.Err() != nil:
		c.moveTo(StateFailed)
		return nativemsg.Response{}, fmt.Errorf("handler cancelled: %w", ctx.Err())
	}

	if waitErr != nil {
		c.moveTo(StateFailed)
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nativemsg.Response{}, &ExitCodeError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nativemsg.Response{}, fmt.Errorf("wait for handler: %w", waitErr)
	}

	resp, err := responseFromOutput(req.RequestID, stdout.Bytes(), inv.cfg.source())
	if err != nil {
		c.moveTo(StateFailed)
		return nativemsg.Response{}, err
	}
	c.moveTo(StateSucceeded)
	return resp, nil
}

// call tracks one invocation through its states.
type call struct {
	requestID string
	command   string
	state     State
}

func (c *call) moveTo(next State) {
	if !c.state.canMoveTo(next) {
		logx.Log.Error().
			Str("request_id", c.requestID).
			Stringer("from", c.state).
			Stringer("to", next).
			Msg("invalid invocation transition")
		return
	}
	logx.Log.Trace().
		Str("request_id", c.requestID).
		Str("command", c.command).
		Stringer("from", c.state).
		Stringer("to", next).
		Msg("invocation state")
	c.state = next
}
