// Package drain records whether the host has stopped accepting new work.
package drain

import (
	"sync/atomic"
	"time"
)

// State is a drain flag. The zero value is not draining.
type State struct {
	since atomic.Int64
}

// Start marks the state as draining. It reports false when draining had
// already started.
func (s *State) Start() bool {
	return s.since.CompareAndSwap(0, time.Now().UnixNano())
}

// Stop clears the draining flag.
func (s *State) Stop() { s.since.Store(0) }

// IsDraining reports whether draining is in progress.
func (s *State) IsDraining() bool { return s.since.Load() != 0 }

// Since returns when draining started, or the zero time.
func (s *State) Since() time.Time {
	ns := s.since.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
