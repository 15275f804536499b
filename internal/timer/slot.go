// Package timer holds the single-shot, restartable delay used to debounce
// outgoing typing signals.
package timer

import (
	"sync"
	"time"

	"github.com/bhandras/relaychat/internal/actor"
)

// Slot holds at most one pending callback. Scheduling a new callback cancels
// the previous one, so at any time there is a single outstanding timer.
//
// Stopping a runtime timer can race with a callback that is already on its
// way; Slot tags every schedule with a generation and drops callbacks whose
// generation is no longer current.
type Slot struct {
	clock actor.Clock

	mu      sync.Mutex
	gen     uint64
	pending actor.Timer
}

// NewSlot returns an empty slot scheduling on clock. A nil clock means the
// real clock.
func NewSlot(clock actor.Clock) *Slot {
	if clock == nil {
		clock = actor.RealClock{}
	}
	return &Slot{clock: clock}
}

// Schedule arms fn to run once after delay, replacing any pending callback.
// It reports false (and schedules nothing) when delay is not positive or fn
// is nil.
func (s *Slot) Schedule(delay time.Duration, fn func()) bool {
	if delay <= 0 || fn == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.pending = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen != gen || s.pending == nil {
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()
		fn()
	})
	return true
}

// Cancel drops the pending callback, if any, and reports whether one was
// pending.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false
	}
	s.stopLocked()
	s.gen++
	return true
}

// Pending reports whether a callback is armed.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Slot) stopLocked() {
	if s.pending == nil {
		return
	}
	s.pending.Stop()
	s.pending = nil
}
