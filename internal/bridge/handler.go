package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

// Handler answers one request. Implementations report failures as error
// envelopes rather than Go errors.
type Handler interface {
	Handle(ctx context.Context, req nativemsg.Request) nativemsg.Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req nativemsg.Request) nativemsg.Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req nativemsg.Request) nativemsg.Response {
	return f(ctx, req)
}

// Mux routes requests to handlers by command. Commands without a route go
// to the fallback; without one they are answered with an error.
type Mux struct {
	mu       sync.RWMutex
	routes   map[string]Handler
	fallback Handler
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[string]Handler)}
}

// Register routes command to h.
func (m *Mux) Register(command string, h Handler) {
	m.mu.Lock()
	m.routes[command] = h
	m.mu.Unlock()
}

// SetFallback sets the handler for commands without a route.
func (m *Mux) SetFallback(h Handler) {
	m.mu.Lock()
	m.fallback = h
	m.mu.Unlock()
}

// Commands returns the commands with a dedicated route.
func (m *Mux) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.routes))
	for c := range m.routes {
		out = append(out, c)
	}
	return out
}

// Handle implements Handler.
func (m *Mux) Handle(ctx context.Context, req nativemsg.Request) nativemsg.Response {
	m.mu.RLock()
	h, ok := m.routes[req.Command]
	if !ok {
		h = m.fallback
	}
	m.mu.RUnlock()
	if h == nil {
		return nativemsg.Fail(req.RequestID, fmt.Errorf("unknown command %q", req.Command), source)
	}
	return h.Handle(ctx, req)
}
