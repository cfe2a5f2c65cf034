// Package timectrl owns simulated time. A Calendar is a discrete-event
// calendar: callbacks are scheduled at absolute simulation instants and the
// calendar advances its clock from event to event when run. There is no
// wall-clock coupling anywhere; a simulation of 100 seconds runs as fast as
// the callbacks execute.
package timectrl

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// SimClock is a read-only view of simulation time. Components that only need
// to ask "what time is it" depend on this interface rather than on the
// concrete Calendar, which keeps them trivially testable.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// event is a single scheduled callback.
type event struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// Calendar schedules callbacks at simulation instants and advances simulated
// time as it fires them.
//
// Ordering guarantee: events are fired in non-decreasing time order, and
// events scheduled for the same instant fire in the order they were enqueued
// (FIFO tie-break). This makes runs deterministic and repeatable for the same
// inputs.
//
// Cancellation: Schedule returns an opaque ID that can be passed to Cancel
// before the event fires. Cancelling an unknown or already-fired ID is a
// no-op.
type Calendar struct {
	mu      sync.Mutex
	now     time.Time
	counter uint64
	events  []*event // ordered by 'when', FIFO among equal times
	index   map[string]*event

	listeners []func(time.Time)
}

// NewCalendar constructs a calendar with its clock set to start.
func NewCalendar(start time.Time) *Calendar {
	return &Calendar{
		now:   start,
		index: make(map[string]*event),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (c *Calendar) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Schedule registers a callback f to fire at simulation time 'at' and returns
// an opaque event ID usable with Cancel. Scheduling in the past is clamped to
// the current instant: the event fires on the next processing step, after
// events already queued for that instant.
func (c *Calendar) Schedule(at time.Time, f func()) (id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at.Before(c.now) {
		at = c.now
	}

	c.counter++
	id = fmt.Sprintf("ev-%d", c.counter)

	ev := &event{id: id, when: at, f: f}
	c.addEventLocked(ev)
	c.index[id] = ev

	return id
}

// ScheduleAfter registers a callback to fire d after the current instant.
// Negative durations are treated as zero.
func (c *Calendar) ScheduleAfter(d time.Duration, f func()) (id string) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	at := c.now.Add(d)
	c.mu.Unlock()
	return c.Schedule(at, f)
}

// addEventLocked inserts an event keeping time order, after any events
// already queued for the same instant. Caller must hold c.mu.
func (c *Calendar) addEventLocked(ev *event) {
	idx := sort.Search(len(c.events), func(i int) bool {
		return c.events[i].when.After(ev.when)
	})
	c.events = append(c.events, nil)
	copy(c.events[idx+1:], c.events[idx:])
	c.events[idx] = ev
}

// Cancel attempts to cancel a previously scheduled event. It is a no-op if
// the ID is unknown or the event already fired.
func (c *Calendar) Cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, ok := c.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(c.index, id)
	// Removal from c.events is lazy; the run loop skips cancelled events.
}

// AddListener registers a callback invoked after every fired event with the
// instant it fired at. Used by observability wiring to count events.
func (c *Calendar) AddListener(fn func(time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Pending reports the number of events still queued (cancelled events are not
// counted).
func (c *Calendar) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if !ev.cancelled {
			n++
		}
	}
	return n
}

// popNextLocked removes and returns the earliest non-cancelled event whose
// time is <= until, or nil. Caller must hold c.mu.
func (c *Calendar) popNextLocked(until time.Time) *event {
	for len(c.events) > 0 {
		ev := c.events[0]
		if ev.cancelled {
			c.events = c.events[1:]
			continue
		}
		if ev.when.After(until) {
			return nil
		}
		c.events = c.events[1:]
		return ev
	}
	return nil
}

// Step fires the single earliest pending event, advancing the clock to its
// instant. It returns false if no event is pending.
func (c *Calendar) Step() bool {
	c.mu.Lock()
	ev := c.popNextLocked(maxTime)
	if ev == nil {
		c.mu.Unlock()
		return false
	}
	delete(c.index, ev.id)
	if ev.when.After(c.now) {
		c.now = ev.when
	}
	now := c.now
	listeners := c.listeners
	c.mu.Unlock()

	// Fire outside the lock so callbacks can schedule and cancel freely.
	if ev.f != nil {
		ev.f()
	}
	for _, fn := range listeners {
		fn(now)
	}
	return true
}

// Run fires all events up to and including 'until' in order, advancing the
// clock event by event, then leaves the clock at 'until'. It returns the
// number of events fired. Events scheduled during the run are honoured if
// they fall within the horizon.
func (c *Calendar) Run(until time.Time) int {
	fired := 0
	for {
		c.mu.Lock()
		ev := c.popNextLocked(until)
		if ev == nil {
			if until.After(c.now) {
				c.now = until
			}
			c.mu.Unlock()
			return fired
		}
		delete(c.index, ev.id)
		if ev.when.After(c.now) {
			c.now = ev.when
		}
		now := c.now
		listeners := c.listeners
		c.mu.Unlock()

		if ev.f != nil {
			ev.f()
		}
		for _, fn := range listeners {
			fn(now)
		}
		fired++
	}
}

// RunFor is shorthand for Run(Now()+d).
func (c *Calendar) RunFor(d time.Duration) int {
	c.mu.Lock()
	until := c.now.Add(d)
	c.mu.Unlock()
	return c.Run(until)
}

var maxTime = time.Unix(1<<62, 0)
