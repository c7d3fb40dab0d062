// Package clock provides the recurring driver's clock adapter: something
// that can be asked for the current instant, with a fake implementation
// swappable in for deterministic tests.
package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Clock returns the current instant. The recurring driver stamps each
// tick's startedAt/finishedAt through this interface rather than calling
// time.Now() directly, so tests can control the passage of time.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall-clock implementation used in production.
type RealClock struct {
	inner bclock.Clock
}

var _ Clock = (*RealClock)(nil)

// NewReal returns a Clock backed by the real wall clock.
func NewReal() *RealClock {
	return &RealClock{inner: bclock.New()}
}

// Now returns the current wall-clock time.
func (r *RealClock) Now() time.Time {
	return r.inner.Now()
}

// FakeClock is a clock implementation whose current instant only advances
// when Advance or Set is called. It is meant as a drop-in replacement for
// RealClock in tests that need to assert on startedAt/finishedAt without
// sleeping.
type FakeClock struct {
	mu    sync.Mutex
	inner *bclock.Mock
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a FakeClock whose current instant starts at t.
func NewFake(t time.Time) *FakeClock {
	m := bclock.NewMock()
	m.Set(t)
	return &FakeClock{inner: m}
}

// Now returns the fake clock's current instant.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Now()
}

// Advance moves the fake clock's current instant forward by d.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inner.Add(d)
}

// Set moves the fake clock's current instant to t. t must not be before
// the clock's current instant.
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inner.Set(t)
}

// Mock exposes the underlying benbjohnson/clock mock, for tests that also
// need a fake timer/ticker source consistent with this clock's notion of
// time (used by package recur's tests to build an exec.Controller).
func (f *FakeClock) Mock() *bclock.Mock {
	return f.inner
}
