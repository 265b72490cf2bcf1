// Package clock provides the millisecond time source shared by the scheduler
// and every task.
//
// All due-time comparisons in the gateway go through a Clock so that tests can
// drive time explicitly and production code never compares against a wall
// clock that may step.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time in milliseconds.
type Clock interface {
	NowMs() int64
}

// System is a monotonic clock anchored to the wall time at construction.
//
// NowMs advances with the monotonic reading of time.Since, so NTP steps after
// start-up never move it backwards.
type System struct {
	startMs int64
	start   time.Time
}

// NewSystem creates a System clock anchored at the current wall time.
func NewSystem() *System {
	now := time.Now()
	return &System{
		startMs: now.UnixMilli(),
		start:   now,
	}
}

// NowMs returns the wall-anchored monotonic time in milliseconds.
func (s *System) NowMs() int64 {
	return s.startMs + time.Since(s.start).Milliseconds()
}

// Manual is a Clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual creates a Manual clock starting at nowMs.
func NewManual(nowMs int64) *Manual {
	return &Manual{now: nowMs}
}

// NowMs returns the current manual time.
func (m *Manual) NowMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to nowMs.
func (m *Manual) Set(nowMs int64) {
	m.mu.Lock()
	m.now = nowMs
	m.mu.Unlock()
}

// Advance moves the clock forward by deltaMs and returns the new time.
func (m *Manual) Advance(deltaMs int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += deltaMs
	return m.now
}
