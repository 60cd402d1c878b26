// Package schedule runs the cancelable timers a room needs: countdown ticks,
// question deadlines, result delays and the reapers. Timer firings are handed
// to a delivery function so the owner can process them on its own goroutine.
package schedule

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Slot names one timer. Arming a slot replaces whatever timer it held.
type Slot string

// Firing is delivered when a slot's timer expires. Gen identifies the arming
// that produced it so a firing that raced with a cancel can be discarded.
type Firing struct {
	Slot Slot
	Gen  uint64
}

type entry struct {
	gen      uint64
	timer    clockwork.Timer
	stop     chan struct{}
	every    time.Duration
	deadline time.Time

	paused    bool
	remaining time.Duration
}

// Scheduler owns the timers of one room.
type Scheduler struct {
	clock   Clock
	deliver func(Firing)

	mu      sync.Mutex
	gen     uint64
	entries map[Slot]*entry
	stopped bool
}

// New creates a scheduler. deliver is called from a timer goroutine and must
// hand the firing over to the owner; the owner then calls Accept.
func New(clock Clock, deliver func(Firing)) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:   clock,
		deliver: deliver,
		entries: make(map[Slot]*entry),
	}
}

// After arms slot to fire once after d.
func (s *Scheduler) After(slot Slot, d time.Duration) {
	s.arm(slot, d, 0)
}

// Every arms slot to fire every d until cancelled. The next period starts when
// the previous firing is accepted.
func (s *Scheduler) Every(slot Slot, d time.Duration) {
	s.arm(slot, d, d)
}

func (s *Scheduler) arm(slot Slot, d, every time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if old, ok := s.entries[slot]; ok {
		old.halt()
	}

	e := &entry{every: every}
	s.entries[slot] = e
	s.start(slot, e, d)
}

// start launches the timer goroutine for e. Caller holds s.mu.
func (s *Scheduler) start(slot Slot, e *entry, d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.gen++
	e.gen = s.gen
	e.deadline = s.clock.Now().Add(d)
	e.timer = s.clock.NewTimer(d)
	e.stop = make(chan struct{})

	go func(t clockwork.Timer, stop <-chan struct{}, f Firing) {
		select {
		case <-t.Chan():
			s.deliver(f)
		case <-stop:
		}
	}(e.timer, e.stop, Firing{Slot: slot, Gen: e.gen})
}

// halt stops the entry's timer and releases its goroutine.
func (e *entry) halt() {
	if e.timer != nil {
		stopAndDrainTimer(e.timer)
	}
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// Cancel disarms slot. A firing already in flight is rejected by Accept.
func (s *Scheduler) Cancel(slot Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[slot]; ok {
		e.halt()
		delete(s.entries, slot)
	}
}

// Pause suspends slot and returns the time it had left. The second return
// value is false when the slot is not armed.
func (s *Scheduler) Pause(slot Slot) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[slot]
	if !ok {
		return 0, false
	}
	if e.paused {
		return e.remaining, true
	}

	e.remaining = max(e.deadline.Sub(s.clock.Now()), 0)
	e.halt()
	e.paused = true
	// Invalidate any firing that is already queued with the owner.
	s.gen++
	e.gen = s.gen
	return e.remaining, true
}

// Resume re-arms a paused slot with the time it had left when paused.
func (s *Scheduler) Resume(slot Slot) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[slot]
	if !ok || !e.paused || s.stopped {
		return 0, false
	}
	e.paused = false
	s.start(slot, e, e.remaining)
	return e.remaining, true
}

// Remaining returns the time left before slot fires.
func (s *Scheduler) Remaining(slot Slot) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[slot]
	if !ok {
		return 0, false
	}
	if e.paused {
		return e.remaining, true
	}
	return max(e.deadline.Sub(s.clock.Now()), 0), true
}

// Active reports whether slot is armed or paused.
func (s *Scheduler) Active(slot Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[slot]
	return ok
}

// Accept reports whether f is the current firing of its slot. One-shot slots
// are cleared and repeating slots re-armed for their next period.
func (s *Scheduler) Accept(f Firing) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[f.Slot]
	if !ok || e.paused || e.gen != f.Gen || s.stopped {
		return false
	}

	if e.every > 0 {
		e.halt()
		s.start(f.Slot, e, e.every)
		return true
	}

	e.halt()
	delete(s.entries, f.Slot)
	return true
}

// Stop cancels every slot. Later arms are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for slot, e := range s.entries {
		e.halt()
		delete(s.entries, slot)
	}
	s.stopped = true
}
