// Package clocktest provides a manually advanced clock for deterministic tests
// of code that takes a nowFunc/afterFunc pair.
package clocktest

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type Clock struct {
	t          *testing.T
	lock       sync.Mutex
	now        time.Time
	timers     []timer
	afterCalls atomic.Int32
}

type timer struct {
	expiresAt time.Time
	ch        chan<- time.Time
}

func New(t *testing.T, start time.Time) *Clock {
	return &Clock{
		t:      t,
		now:    start,
		timers: []timer{},
	}
}

func (c *Clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.now
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	defer c.afterCalls.Add(1)

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		close(ch)
		return ch
	}

	c.timers = append(c.timers, timer{
		ch:        ch,
		expiresAt: c.now.Add(d),
	})

	return ch
}

// Advance moves the clock forward, firing every timer that expires on or before the new time
func (c *Clock) Advance(d time.Duration) {
	c.t.Helper()

	c.lock.Lock()
	defer c.lock.Unlock()

	c.now = c.now.Add(d)

	var remaining []timer
	for _, timer := range c.timers {
		if !c.now.Before(timer.expiresAt) {
			timer.ch <- c.now
			close(timer.ch)
		} else {
			remaining = append(remaining, timer)
		}
	}
	c.timers = remaining
}

// AfterCalls returns the total number of calls made to After
func (c *Clock) AfterCalls() int {
	return int(c.afterCalls.Load())
}

// WaitForAfterCalls blocks until After has been called at least n times in total
func (c *Clock) WaitForAfterCalls(n int) {
	c.t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for c.AfterCalls() < n {
		if time.Now().After(deadline) {
			c.t.Fatalf("timed out waiting for %d calls to After (got %d)", n, c.AfterCalls())
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}
