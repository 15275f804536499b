package actortest

import (
	"sort"
	"sync"
	"time"

	"github.com/bhandras/relaychat/internal/actor"
)

// FakeClock is a virtual Clock for tests. Time only moves when Advance or Set
// is called, and due AfterFunc callbacks run synchronously inside that call,
// in deadline order.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers map[int64]*fakeTimer
}

var _ actor.Clock = (*FakeClock)(nil)

type fakeTimer struct {
	clock *FakeClock
	id    int64
	at    time.Time
	fn    func()
}

// Stop implements actor.Timer.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t.id]; !ok {
		return false
	}
	delete(t.clock.timers, t.id)
	return true
}

// NewFakeClock returns a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start, timers: make(map[int64]*fakeTimer)}
}

// Now implements actor.Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements actor.Clock.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) actor.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, id: c.seq, at: c.now.Add(d), fn: f}
	c.timers[t.id] = t
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Set sets the current clock time, firing any timers that became due.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	due := c.collectDueLocked()
	c.mu.Unlock()

	for _, ft := range due {
		ft.fn()
	}
}

// Advance moves time forward by d, firing any timers that became due.
func (c *FakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

func (c *FakeClock) collectDueLocked() []*fakeTimer {
	var due []*fakeTimer
	for id, ft := range c.timers {
		if !ft.at.After(c.now) {
			due = append(due, ft)
			delete(c.timers, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due
}
