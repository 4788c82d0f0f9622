package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gaspardpetit/focushost/internal/drain"
	"github.com/gaspardpetit/focushost/internal/inflight"
	"github.com/gaspardpetit/focushost/internal/logx"
	"github.com/gaspardpetit/focushost/internal/metrics"
	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

// source names the bridge in envelopes it produces itself.
const source = "bridge"

// ErrDraining answers requests that arrive after Drain.
var ErrDraining = errors.New("host is shutting down")

// ErrShuttingDown answers requests that were still waiting for a slot
// when the bridge stopped.
var ErrShuttingDown = errors.New("bridge shutting down")

// DefaultShutdownGrace bounds how long in-flight requests may take to
// finish once the input has ended.
const DefaultShutdownGrace = time.Second

// Options tune a Bridge. The zero value is sequential dispatch with the
// default grace period and frame limit.
type Options struct {
	// MaxConcurrency caps requests handled at once. 0 or 1 answers
	// requests strictly in order.
	MaxConcurrency int
	ShutdownGrace  time.Duration
	// MaxFrameSize caps incoming frames; 0 means nativemsg.MaxIncomingSize.
	MaxFrameSize uint32
}

// Stats is a snapshot of a Bridge's counters.
type Stats struct {
	Requests    uint64    `json:"requests"`
	Failures    uint64    `json:"failures"`
	InFlight    int64     `json:"in_flight"`
	Draining    bool      `json:"draining"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitzero"`
}

// Bridge connects a framed input and output to a Handler.
type Bridge struct {
	reader   *nativemsg.Reader
	writer   *nativemsg.Writer
	handler  Handler
	grace    time.Duration
	sem      chan struct{}
	inflight inflight.Counter
	draining drain.State
	wg       sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// New returns a Bridge reading requests from in and writing responses to
// out. The Bridge owns both streams for as long as Run is active.
func New(in io.Reader, out io.Writer, h Handler, opts Options) *Bridge {
	maxFrame := opts.MaxFrameSize
	if maxFrame == 0 {
		maxFrame = nativemsg.MaxIncomingSize
	}
	conc := opts.MaxConcurrency
	if conc < 1 {
		conc = 1
	}
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	b := &Bridge{
		reader:  nativemsg.NewReaderSize(in, maxFrame),
		writer:  nativemsg.NewWriter(out),
		handler: h,
		grace:   grace,
		sem:     make(chan struct{}, conc),
	}
	b.inflight.OnChange(metrics.SetInFlight)
	return b
}

// Stats returns the current counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	s := b.stats
	b.mu.Unlock()
	s.InFlight = b.inflight.Load()
	s.Draining = b.draining.IsDraining()
	return s
}

// Drain makes the bridge answer new requests with ErrDraining while the
// ones already running finish.
func (b *Bridge) Drain() {
	if b.draining.Start() {
		logx.Log.Info().Int64("in_flight", b.inflight.Load()).Msg("draining; new requests are refused")
	}
}

// WaitIdle blocks until no request is in flight or ctx is done.
func (b *Bridge) WaitIdle(ctx context.Context) bool {
	return b.inflight.WaitForZero(ctx)
}

type readResult struct {
	msg json.RawMessage
	err error
}

// Run serves requests until the input ends or ctx is cancelled.
//
// The grace period starts as soon as the input ends. Requests still
// waiting for a slot when it runs out are answered with ErrShuttingDown,
// running handlers are cancelled, and Run waits at most one more grace
// period for them. Run returns nil when the input ends.
func (b *Bridge) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// handlerCtx is seen by handlers and slot waits; it also ends when the
	// grace period after end of input runs out.
	handlerCtx, cancelHandlers := context.WithCancel(runCtx)
	defer cancelHandlers()

	msgs := make(chan readResult)
	readDone := make(chan struct{})
	var readErr error
	go func() {
		readErr = b.readLoop(runCtx, msgs)
		close(readDone)
	}()
	go b.graceTimer(runCtx, readDone, cancelHandlers)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-readDone:
			break loop
		case res := <-msgs:
			if res.err != nil {
				b.framingError(handlerCtx, res.err)
				continue
			}
			metrics.FrameRead()
			b.dispatchMessage(handlerCtx, res.msg)
		}
	}

	if ctx.Err() != nil {
		logx.Log.Info().Int64("in_flight", b.inflight.Load()).Msg("bridge cancelled; stopping handlers")
		cancelHandlers()
		b.waitHandlers()
		return ctx.Err()
	}

	if n := b.inflight.Load(); n > 0 {
		logx.Log.Info().Int64("in_flight", n).Dur("grace", b.grace).Msg("input closed; waiting for in-flight requests")
	}
	b.inflight.WaitForZero(handlerCtx)
	cancelHandlers()
	b.waitHandlers()

	switch {
	case readErr == nil, errors.Is(readErr, io.EOF):
		logx.Log.Info().Msg("input closed; bridge stopped")
		return nil
	case errors.Is(readErr, io.ErrUnexpectedEOF):
		logx.Log.Warn().Msg("input closed inside a frame; partial message dropped")
		return nil
	default:
		return fmt.Errorf("read input: %w", readErr)
	}
}

// graceTimer cancels handlers once the grace period after end of input
// has run out.
func (b *Bridge) graceTimer(ctx context.Context, readDone <-chan struct{}, cancel context.CancelFunc) {
	select {
	case <-readDone:
	case <-ctx.Done():
		return
	}
	t := time.NewTimer(b.grace)
	defer t.Stop()
	select {
	case <-t.C:
		if n := b.inflight.Load(); n > 0 {
			logx.Log.Warn().Int64("in_flight", n).Msg("grace period over; cancelling in-flight requests")
		}
		cancel()
	case <-ctx.Done():
	}
}

// waitHandlers waits for handler goroutines, giving up after one grace
// period. A handler that ignores cancellation may write its response late.
func (b *Bridge) waitHandlers() {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	t := time.NewTimer(b.grace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		logx.Log.Warn().Int64("in_flight", b.inflight.Load()).Msg("handlers did not stop after cancellation; not waiting for them")
	}
}

// readLoop decodes frames and hands them to Run. Framing errors are passed
// along and reading continues; any other error ends the loop and is
// returned.
func (b *Bridge) readLoop(ctx context.Context, out chan<- readResult) error {
	for {
		msg, err := b.reader.Next()
		if err != nil && !nativemsg.IsFramingError(err) {
			return err
		}
		select {
		case out <- readResult{msg: msg, err: err}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) framingError(ctx context.Context, err error) {
	kind := "invalid_json"
	var tooLarge *nativemsg.FrameTooLargeError
	if errors.As(err, &tooLarge) {
		kind = "too_large"
	}
	metrics.FramingError(kind)
	logx.Log.Warn().Err(err).Msg("malformed frame")
	resp := nativemsg.Fail("", err, source)
	b.dispatch(ctx, "", func(context.Context) nativemsg.Response { return resp })
}

func (b *Bridge) dispatchMessage(ctx context.Context, msg json.RawMessage) {
	req, err := nativemsg.ParseRequest(msg)
	if err != nil {
		id := requestIDOf(msg)
		logx.Log.Warn().Err(err).Str("request_id", id).Msg("rejecting request")
		resp := nativemsg.Fail(id, err, source)
		b.dispatch(ctx, "", func(context.Context) nativemsg.Response { return resp })
		return
	}
	if b.draining.IsDraining() {
		resp := nativemsg.Fail(req.RequestID, ErrDraining, source)
		b.dispatch(ctx, req.RequestID, func(context.Context) nativemsg.Response { return resp })
		return
	}
	logx.Log.Debug().Str("request_id", req.RequestID).Str("command", req.Command).Msg("request received")
	b.dispatch(ctx, req.RequestID, func(ctx context.Context) nativemsg.Response {
		return b.handler.Handle(ctx, req)
	})
}

// dispatch runs fn once a concurrency slot is free and sends its
// response. With a single slot this blocks until the previous response
// has been written, which keeps responses in request order.
func (b *Bridge) dispatch(ctx context.Context, requestID string, fn func(context.Context) nativemsg.Response) {
	select {
	case b.sem <- struct{}{}:
	default:
		select {
		case b.sem <- struct{}{}:
		case <-ctx.Done():
			logx.Log.Warn().Str("request_id", requestID).Msg("request still queued at shutdown; not started")
			b.send(nativemsg.Fail(requestID, ErrShuttingDown, source))
			return
		}
	}
	b.inflight.Inc()
	b.wg.Add(1)
	go func() {
		defer func() {
			<-b.sem
			b.inflight.Dec()
			b.wg.Done()
		}()
		resp := b.call(ctx, requestID, fn)
		if resp.RequestID == "" {
			resp.RequestID = requestID
		}
		if resp.Timestamp == 0 {
			resp.Timestamp = nativemsg.Now()
		}
		b.record(resp)
		b.send(resp)
	}()
}

func (b *Bridge) call(ctx context.Context, requestID string, fn func(context.Context) nativemsg.Response) (resp nativemsg.Response) {
	defer func() {
		if r := recover(); r != nil {
			logx.Log.Error().Interface("panic", r).Str("request_id", requestID).Msg("handler panicked")
			resp = nativemsg.Fail(requestID, fmt.Errorf("handler panic: %v", r), source)
		}
	}()
	return fn(ctx)
}

// send writes resp. A response that cannot be encoded is replaced by a
// minimal error envelope so the request is still answered.
func (b *Bridge) send(resp nativemsg.Response) {
	err := b.writer.WriteMessage(resp)
	var encErr *nativemsg.EncodingError
	if errors.As(err, &encErr) {
		metrics.EncodingError()
		logx.Log.Error().Err(err).Str("request_id", resp.RequestID).Msg("response could not be encoded")
		err = b.writer.WriteMessage(nativemsg.Fail(resp.RequestID, fmt.Errorf("response could not be encoded: %w", encErr), source))
	}
	if err != nil {
		logx.Log.Error().Err(err).Str("request_id", resp.RequestID).Msg("failed to write response")
		return
	}
	metrics.FrameWritten()
}

func (b *Bridge) record(resp nativemsg.Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Requests++
	if !resp.Success {
		b.stats.Failures++
		b.stats.LastError = resp.Error
		b.stats.LastErrorAt = time.Now()
	}
}

// requestIDOf extracts requestId from a message that is not a valid
// request, when it has a string one.
func requestIDOf(msg json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(fields["requestId"], &id); err != nil {
		return ""
	}
	return id
}
