package invoker

import (
	"context"

	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

// Runner is a handler backend: either an Invoker or a Worker.
type Runner interface {
	Handle(ctx context.Context, req nativemsg.Request) nativemsg.Response
	Invoke(ctx context.Context, req nativemsg.Request) (nativemsg.Response, error)
	Close() error
}

// NewRunner returns the backend selected by cfg.Mode.
func NewRunner(cfg Config) Runner {
	if cfg.Mode == ModePersistent {
		return NewWorker(cfg)
	}
	return New(cfg)
}

// Close implements Runner. Per-request handlers leave nothing running.
func (inv *Invoker) Close() error { return nil }
