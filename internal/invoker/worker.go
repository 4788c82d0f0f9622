package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gaspardpetit/focushost/internal/logx"
	"github.com/gaspardpetit/focushost/internal/metrics"
	"github.com/gaspardpetit/focushost/internal/nativemsg"
	"github.com/gaspardpetit/focushost/internal/reconnect"
)

// ErrBackpressure indicates the worker already has the maximum number of
// requests outstanding.
var ErrBackpressure = errors.New("worker backpressure")

// ErrWorkerClosed is returned for requests arriving after Close.
var ErrWorkerClosed = errors.New("worker closed")

const defaultMaxInflight = 64

// Worker keeps one handler process alive and multiplexes requests to it.
// A crashed process fails its outstanding requests and is restarted on the
// next request, after a backoff when it keeps crashing.
type Worker struct {
	cfg         Config
	maxInflight int

	mu       sync.Mutex
	proc     *workerProc
	attempt  int
	lastExit time.Time
	closed   bool
	// closeCh is closed by Close to wake requests waiting out a backoff.
	closeCh chan struct{}
}

// NewWorker returns a Worker for cfg. The process is started lazily.
func NewWorker(cfg Config) *Worker {
	return &Worker{cfg: cfg, maxInflight: defaultMaxInflight, closeCh: make(chan struct{})}
}

// Handle forwards req to the worker and always returns an envelope.
func (w *Worker) Handle(ctx context.Context, req nativemsg.Request) nativemsg.Response {
	resp, err := w.Invoke(ctx, req)
	if err != nil {
		return nativemsg.Fail(req.RequestID, err, w.cfg.source())
	}
	return resp
}

// Invoke forwards req to the worker process, starting it if needed.
func (w *Worker) Invoke(ctx context.Context, req nativemsg.Request) (nativemsg.Response, error) {
	start := time.Now()
	resp, err := w.call(ctx, req)
	metrics.RecordRequest(req.Command, Outcome(err), time.Since(start))

	ev := logx.Log.Debug()
	if err != nil {
		ev = logx.Log.Warn().Err(err)
	}
	ev.Str("request_id", req.RequestID).
		Str("command", req.Command).
		Str("outcome", Outcome(err)).
		Dur("elapsed", time.Since(start)).
		Msg("worker call finished")
	return resp, err
}

func (w *Worker) call(ctx context.Context, req nativemsg.Request) (nativemsg.Response, error) {
	payload, err := req.Payload()
	if err != nil {
		return nativemsg.Response{}, fmt.Errorf("encode request: %w", err)
	}
	c := &call{requestID: req.RequestID, command: req.Command}

	c.moveTo(StateSpawning)
	p, err := w.process(ctx)
	if err != nil {
		c.moveTo(StateFailed)
		return nativemsg.Response{}, err
	}
	c.moveTo(StateRunning)

	id := uuid.NewString()
	replyCh, ok := p.register(id, w.maxInflight)
	if !ok {
		c.moveTo(StateFailed)
		return nativemsg.Response{}, ErrBackpressure
	}
	defer p.unregister(id)

	if err := p.writer.WriteMessage(Call{ID: id, Request: payload}); err != nil {
		c.moveTo(StateFailed)
		select {
		case <-p.done:
			return nativemsg.Response{}, p.exitErr
		case <-time.After(waitDelay):
			return nativemsg.Response{}, fmt.Errorf("send to worker: %w", err)
		}
	}

	timeout := w.cfg.timeout()
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case reply := <-replyCh:
		return w.finish(c, req, reply)
	case <-p.done:
		select {
		case reply := <-replyCh:
			return w.finish(c, req, reply)
		default:
		}
		c.moveTo(StateFailed)
		return nativemsg.Response{}, p.exitErr
	case <-expired:
		c.moveTo(StateFailed)
		logx.Log.Warn().Str("request_id", req.RequestID).Dur("timeout", timeout).Msg("worker timed out; killing it")
		w.detach(p)
		p.kill()
		return nativemsg.Response{}, &TimeoutError{After: timeout}
	case <-ctx.Done():
		c.moveTo(StateFailed)
		return nativemsg.Response{}, fmt.Errorf("handler cancelled: %w", ctx.Err())
	}
}

func (w *Worker) finish(c *call, req nativemsg.Request, reply Reply) (nativemsg.Response, error) {
	if reply.Error != "" {
		c.moveTo(StateFailed)
		return nativemsg.Response{}, &ReplyError{Message: reply.Error}
	}
	resp, err := responseFromOutput(req.RequestID, reply.Result, w.cfg.source())
	if err != nil {
		c.moveTo(StateFailed)
		return nativemsg.Response{}, err
	}
	c.moveTo(StateSucceeded)
	return resp, nil
}

// process returns the live worker process, starting one when there is
// none. Restarts after a crash wait for the reconnect schedule; the lock
// is not held while waiting.
func (w *Worker) process(ctx context.Context) (*workerProc, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if w.closed {
			return nil, ErrWorkerClosed
		}
		if w.proc != nil && !w.proc.exited() {
			return w.proc, nil
		}
		if w.attempt == 0 {
			break
		}
		delay := reconnect.Delay(w.attempt) - time.Since(w.lastExit)
		if delay <= 0 {
			break
		}
		logx.Log.Info().Dur("backoff", delay).Int("attempt", w.attempt).Msg("waiting before restarting worker")
		w.mu.Unlock()
		t := time.NewTimer(delay)
		var err error
		select {
		case <-ctx.Done():
			err = fmt.Errorf("handler cancelled: %w", ctx.Err())
		case <-w.closeCh:
			err = ErrWorkerClosed
		case <-t.C:
		}
		t.Stop()
		w.mu.Lock()
		if err != nil {
			return nil, err
		}
	}
	p, err := w.start()
	if err != nil {
		w.attempt++
		w.lastExit = time.Now()
		return nil, err
	}
	w.proc = p
	return p, nil
}

func (w *Worker) start() (*workerProc, error) {
	cmd := exec.Command(w.cfg.Command, w.cfg.Args...)
	cmd.Env = append(os.Environ(), w.cfg.Env...)
	cmd.Dir = w.cfg.Dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: w.cfg.Command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: w.cfg.Command, Err: err}
	}
	stderr := newTailBuffer(w.cfg.maxStderr())
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: w.cfg.Command, Err: err}
	}
	metrics.WorkerStarted()
	logx.Log.Info().Str("command", w.cfg.Command).Int("pid", cmd.Process.Pid).Msg("worker started")

	p := &workerProc{
		cmd:     cmd,
		stdin:   stdin,
		writer:  nativemsg.NewWriter(stdin),
		stderr:  stderr,
		done:    make(chan struct{}),
		pending: make(map[string]chan Reply),
	}
	go w.readLoop(p, stdout)
	return p, nil
}

func (w *Worker) readLoop(p *workerProc, stdout io.Reader) {
	r := nativemsg.NewReader(stdout)
	for {
		msg, err := r.Next()
		if err != nil {
			if nativemsg.IsFramingError(err) {
				logx.Log.Warn().Err(err).Msg("dropping malformed worker frame")
				continue
			}
			if !errors.Is(err, io.EOF) {
				logx.Log.Warn().Err(err).Msg("worker output closed")
			}
			break
		}
		var reply Reply
		if err := json.Unmarshal(msg, &reply); err != nil || reply.ID == "" {
			logx.Log.Warn().Str("frame", excerpt(msg)).Msg("dropping worker frame without id")
			continue
		}
		if !p.deliver(reply) {
			logx.Log.Debug().Str("id", reply.ID).Msg("reply for unknown or abandoned call")
		}
	}

	code := 0
	if err := p.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.exitErr = &ExitCodeError{Code: code, Stderr: p.stderr.String()}
	close(p.done)
	logx.Log.Warn().Int("code", code).Str("stderr", p.stderr.String()).Msg("worker exited")

	w.mu.Lock()
	if p.replied() {
		w.attempt = 0
	} else {
		w.attempt++
	}
	w.lastExit = time.Now()
	if w.proc == p {
		w.proc = nil
	}
	w.mu.Unlock()
}

// detach stops handing p out to new calls; it is about to be killed.
func (w *Worker) detach(p *workerProc) {
	w.mu.Lock()
	if w.proc == p {
		w.proc = nil
	}
	w.mu.Unlock()
}

// Close stops the worker process: stdin is closed so it can exit on its
// own, and it is killed if it is still running after a short delay.
func (w *Worker) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.closeCh)
	}
	p := w.proc
	w.mu.Unlock()
	if p == nil {
		return nil
	}
	_ = p.stdin.Close()
	select {
	case <-p.done:
	case <-time.After(waitDelay):
		p.kill()
		<-p.done
	}
	return nil
}

// workerProc is one running worker process and its outstanding calls.
type workerProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *nativemsg.Writer
	stderr *tailBuffer

	// done is closed once the process has exited; exitErr is set before.
	done    chan struct{}
	exitErr error

	mu       sync.Mutex
	pending  map[string]chan Reply
	gotReply bool
}

func (p *workerProc) register(id string, max int) (chan Reply, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if max > 0 && len(p.pending) >= max {
		return nil, false
	}
	ch := make(chan Reply, 1)
	p.pending[id] = ch
	return ch, true
}

func (p *workerProc) unregister(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *workerProc) deliver(reply Reply) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotReply = true
	ch, ok := p.pending[reply.ID]
	if !ok {
		return false
	}
	delete(p.pending, reply.ID)
	ch <- reply
	return true
}

func (p *workerProc) replied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotReply
}

func (p *workerProc) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *workerProc) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
