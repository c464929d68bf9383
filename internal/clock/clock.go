// Package clock provides an abstraction for time operations to improve testability.
// Instead of calling time.Now() directly, code can use the Clock interface which
// can be mocked in tests to control time-dependent behavior, in particular the
// tool cache's TTL eviction sweeps.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for time operations.
// This allows code to be tested with mock clocks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the elapsed system time since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// Mock is a Clock implementation for tests. Its current time only moves
// when Advance or Set is called. Safe for concurrent use so tests can
// advance time while background goroutines read it.
type Mock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMock returns a Mock pinned to the given time.
func NewMock(t time.Time) *Mock {
	return &Mock{current: t}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Since returns the elapsed mock time since t.
func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Advance moves the mock's current time forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Set pins the mock's current time to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// Ensure Mock implements Clock.
var _ Clock = (*Mock)(nil)
