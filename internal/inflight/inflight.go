package inflight

import (
	"context"
	"sync"
)

// Counter tracks requests that have been dispatched but not answered yet.
// The zero value is ready to use.
type Counter struct {
	mu       sync.Mutex
	count    int64
	zeroCh   chan struct{}
	onChange func(int64)
}

// OnChange registers fn to be called with the new count after every
// change. It is called with the counter's lock released.
func (c *Counter) OnChange(fn func(int64)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Inc increments the in-flight counter.
func (c *Counter) Inc() {
	c.mu.Lock()
	c.ensureZeroCh()
	if c.count == 0 {
		c.zeroCh = make(chan struct{})
	}
	c.count++
	n, fn := c.count, c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Dec decrements the in-flight counter.
func (c *Counter) Dec() {
	c.mu.Lock()
	c.ensureZeroCh()
	if c.count > 0 {
		c.count--
		if c.count == 0 {
			close(c.zeroCh)
		}
	}
	n, fn := c.count, c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Load returns the current in-flight count.
func (c *Counter) Load() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// WaitForZero blocks until the count is zero or the context is done.
func (c *Counter) WaitForZero(ctx context.Context) bool {
	c.mu.Lock()
	c.ensureZeroCh()
	ch := c.zeroCh
	c.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// ensureZeroCh lazily creates the channel closed whenever count is zero.
// Callers hold c.mu.
func (c *Counter) ensureZeroCh() {
	if c.zeroCh == nil {
		c.zeroCh = make(chan struct{})
		if c.count == 0 {
			close(c.zeroCh)
		}
	}
}
