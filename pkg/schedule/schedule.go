// Package schedule runs deferred continuations on a frame-driven clock.
// Nothing here starts goroutines: continuations run inside Advance, on the
// caller's loop.
package schedule

import (
	"sort"
	"time"
)

// Handle identifies a scheduled continuation.
type Handle uint64

type task struct {
	id       Handle
	due      time.Duration
	cond     func() bool
	fn       func()
	finished bool // ran or was cancelled
}

// Scheduler holds pending continuations. It is not safe for concurrent use.
type Scheduler struct {
	now     time.Duration
	next    Handle
	tasks   []*task
	running []*task
}

// New returns a scheduler at time zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the scheduler's clock.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After runs fn once the clock has advanced by at least delay.
func (s *Scheduler) After(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	return s.add(&task{due: s.now + delay, fn: fn})
}

// When runs fn on the first Advance where cond returns true.
func (s *Scheduler) When(cond func() bool, fn func()) Handle {
	return s.add(&task{cond: cond, fn: fn})
}

func (s *Scheduler) add(t *task) Handle {
	s.next++
	t.id = s.next
	s.tasks = append(s.tasks, t)
	return t.id
}

// Cancel drops a continuation that has not run yet and reports whether it
// was still pending. It is safe to call from inside a continuation.
func (s *Scheduler) Cancel(h Handle) bool {
	for i, t := range s.tasks {
		if t.id == h {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			t.finished = true
			return true
		}
	}
	for _, t := range s.running {
		if t.id == h && !t.finished {
			t.finished = true
			return true
		}
	}
	return false
}

// CancelAll drops every pending continuation, e.g. on scene teardown.
func (s *Scheduler) CancelAll() {
	for _, t := range s.tasks {
		t.finished = true
	}
	for _, t := range s.running {
		t.finished = true
	}
	s.tasks = nil
}

// Pending returns the number of continuations waiting to run.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

// Advance moves the clock by dt and runs every continuation that became
// ready, ordered by due time and then by scheduling order. Continuations
// scheduled while Advance runs wait for the next call. Returns the number
// of continuations run.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt > 0 {
		s.now += dt
	}

	var ready, waiting []*task
	for _, t := range s.tasks {
		switch {
		case t.cond != nil:
			if t.cond() {
				t.due = s.now
				ready = append(ready, t)
			} else {
				waiting = append(waiting, t)
			}
		case t.due <= s.now:
			ready = append(ready, t)
		default:
			waiting = append(waiting, t)
		}
	}
	s.tasks = waiting

	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].due != ready[j].due {
			return ready[i].due < ready[j].due
		}
		return ready[i].id < ready[j].id
	})

	s.running = ready
	defer func() { s.running = nil }()

	run := 0
	for _, t := range ready {
		if t.finished {
			continue
		}
		t.finished = true
		run++
		if t.fn != nil {
			t.fn()
		}
	}
	return run
}
