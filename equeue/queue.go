package equeue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/logiface"
)

// Queue is an event multiplexer, safe for concurrent use.
// Instances must be initialized using the New factory.
type Queue struct {
	logger *logiface.Logger[logiface.Event]
	events map[key]*Event
	name   string
	cond   sync.Cond
	mu     sync.Mutex
	closed bool
}

// New initializes a new, empty Queue. The name is informational only.
//
// The Queue.Close method should be called when the queue is no longer
// needed, to notify the owners of any remaining records.
//
// New panics if an option fails to apply.
func New(name string, options ...Option) *Queue {
	c, err := resolveOptions(options)
	if err != nil {
		panic(fmt.Sprintf(`equeue: %s`, err))
	}
	x := Queue{
		name:   name,
		events: make(map[key]*Event),
	}
	x.cond.L = &x.mu
	if c.logger != nil {
		x.logger = c.logger.Clone().
			Str(`equeue`, name).
			Logger()
	}
	return &x
}

// Name returns the name the queue was created with.
func (x *Queue) Name() string {
	return x.name
}

// Len returns the number of records held by the queue.
func (x *Queue) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.events)
}

// AddEvent inserts a record, replacing any existing record with the same
// (Ident, Filter). The replaced record, if any, is passed to its DeleteHook.
// If the new record is already triggered, one waiter is woken.
func (x *Queue) AddEvent(ev Event) error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return ErrClosed
	}
	k := ev.key()
	replaced := x.events[k]
	x.events[k] = &ev
	if ev.Triggered {
		x.cond.Signal()
	}
	x.mu.Unlock()

	if replaced != nil {
		replaced.deleted(x)
	}

	return nil
}

// TriggerEvent triggers the record identified by (ident, filter), using its
// TriggerHook if any, otherwise simply marking it as triggered, then wakes
// one waiter. ErrNotFound is returned if there is no such record.
func (x *Queue) TriggerEvent(ident uint64, filter Filter, data int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrClosed
	}
	ev := x.events[key{ident: ident, filter: filter}]
	if ev == nil {
		return errors.Wrapf(ErrNotFound, `trigger %s/%d`, filter, ident)
	}
	ev.trigger(data)
	x.cond.Signal()
	return nil
}

// DeleteEvent removes the record identified by (ident, filter), then calls
// its DeleteHook, if any. ErrNotFound is returned if there is no such record.
func (x *Queue) DeleteEvent(ident uint64, filter Filter) error {
	return x.DeleteEventFunc(ident, filter, nil)
}

// DeleteEventFunc is DeleteEvent, but only removes the record if match
// returns true, otherwise returning ErrNotFound. A nil match matches any
// record. It is called with the queue's lock held, and must not call the
// queue, or modify the record.
func (x *Queue) DeleteEventFunc(ident uint64, filter Filter, match func(ev *Event) bool) error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return ErrClosed
	}
	k := key{ident: ident, filter: filter}
	ev := x.events[k]
	if ev == nil || (match != nil && !match(ev)) {
		x.mu.Unlock()
		return errors.Wrapf(ErrNotFound, `delete %s/%d`, filter, ident)
	}
	delete(x.events, k)
	x.mu.Unlock()

	ev.deleted(x)

	return nil
}

// GetTriggeredEvents collects up to maxEvents triggered records, resetting
// each one collected. Triggered records beyond maxEvents are left as-is, to
// be collected by a subsequent call.
func (x *Queue) GetTriggeredEvents(maxEvents int) []Event {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.collectLocked(maxEvents)
}

// Wait blocks until at least one record is triggered, returning up to
// maxEvents of them (see GetTriggeredEvents). A timeout of 0 means wait
// indefinitely, otherwise ErrTimedOut is returned once the timeout elapses,
// as measured from the start of the call. If ctx is canceled, its error is
// returned. ErrClosed is returned if the queue is, or becomes, closed.
func (x *Queue) Wait(ctx context.Context, maxEvents int, timeout time.Duration) ([]Event, error) {
	if maxEvents < 1 {
		return nil, errors.Wrapf(ErrInvalidArgument, `max events %d`, maxEvents)
	}
	if timeout < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, `timeout %s`, timeout)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, x.broadcast)
		defer timer.Stop()
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, x.broadcast)
		defer stop()
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for {
		if x.closed {
			return nil, ErrClosed
		}
		if events := x.collectLocked(maxEvents); len(events) != 0 {
			return events, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			x.logger.Trace().
				Dur(`timeout`, timeout).
				Log(`wait timed out`)
			return nil, ErrTimedOut
		}
		x.cond.Wait()
	}
}

// Close destroys the queue, calling the DeleteHook of every remaining
// record, and waking all waiters. Subsequent operations fail with ErrClosed.
// Close is idempotent.
func (x *Queue) Close() error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil
	}
	x.closed = true
	events := x.events
	x.events = nil
	x.cond.Broadcast()
	x.mu.Unlock()

	for _, ev := range events {
		ev.deleted(x)
	}

	x.logger.Debug().
		Int(`records`, len(events)).
		Log(`closed event queue`)

	return nil
}

func (x *Queue) collectLocked(maxEvents int) (events []Event) {
	if maxEvents < 1 {
		return nil
	}
	for _, ev := range x.events {
		if !ev.Triggered {
			continue
		}
		events = append(events, *ev)
		ev.reset()
		if len(events) == maxEvents {
			break
		}
	}
	return events
}

// broadcast wakes all waiters, taking the lock to avoid racing a waiter
// between its checks and cond.Wait.
func (x *Queue) broadcast() {
	x.mu.Lock()
	x.cond.Broadcast()
	x.mu.Unlock()
}
