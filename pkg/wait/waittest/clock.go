// Package waittest provides a virtual clock for testing poll loops without
// sleeping.
package waittest

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// StepClock is a clockwork.Clock whose time only moves when something sleeps
// on it. Every After or Sleep advances the clock by the requested duration
// and returns immediately, recording the duration.
type StepClock struct {
	clockwork.Clock

	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewStepClock creates a clock starting at a fixed instant.
func NewStepClock() *StepClock {
	return &StepClock{
		Clock: clockwork.NewRealClock(),
		now:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Now returns the virtual time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the virtual time elapsed since t.
func (c *StepClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// After advances the clock by d and returns an already-fired channel.
func (c *StepClock) After(d time.Duration) <-chan time.Time {
	c.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// Sleep advances the clock by d.
func (c *StepClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
}

// Advance moves the clock without recording a sleep.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns every recorded sleep in order.
func (c *StepClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

var _ clockwork.Clock = (*StepClock)(nil)
