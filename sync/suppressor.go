// Package sync drives per-view state reconciliation: which notifications a
// view acts on, what it re-fetches, and when it swallows its own echoes.
package sync

import (
	gosync "sync"
	"time"
)

// Suppressor swallows the next inbound network notification after a local
// write, so a view does not re-process its own echo. This is flicker
// avoidance, not correctness: remote application is idempotent either way.
//
// Arm sets a lease that Consume redeems at most once; the lease expires on
// its own after the ttl so a lost echo never wedges the view.
type Suppressor struct {
	mu       gosync.Mutex
	armed    bool
	deadline time.Time
	now      func() time.Time
}

// NewSuppressor creates a suppressor on the real clock.
func NewSuppressor() *Suppressor {
	return &Suppressor{now: time.Now}
}

// NewSuppressorWithClock creates a suppressor with an injectable clock so
// tests can advance time deterministically.
func NewSuppressorWithClock(now func() time.Time) *Suppressor {
	return &Suppressor{now: now}
}

// Arm starts a suppression window. Re-arming extends the window.
func (s *Suppressor) Arm(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
	s.deadline = s.now().Add(ttl)
}

// Consume reports whether the caller should drop the current notification.
// It clears the lease either way, so exactly one notification per Arm is
// suppressed.
func (s *Suppressor) Consume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return false
	}
	s.armed = false
	return !s.now().After(s.deadline)
}
