// Package clock provides an injectable time source so engines can stamp
// createdAt/updatedAt/onlineAt deterministically under test
package clock

import (
	"sync"
	"time"
)

// Clock yields the current instant
type Clock interface {
	Now() time.Time
}

// Func adapts a plain func to a Clock
type Func func() time.Time

// Now satisfies Clock
func (f Func) Now() time.Time { return f() }

// Real returns the wall clock
func Real() Clock { return Func(time.Now) }

// Fake is a manually advanced clock for tests
// zero value starts at the Unix epoch; use NewFake for a sane default
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake pinned to t
func NewFake(t time.Time) *Fake { return &Fake{now: t} }

// Now satisfies Clock
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d and returns the new instant
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

// Set pins the fake clock to t
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
