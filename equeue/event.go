package equeue

import (
	"fmt"
)

// Filter identifies the notification category of an Event.
type Filter int16

const (
	// FilterGeneric is used by records that are not owned by a subsystem,
	// e.g. user events.
	FilterGeneric Filter = iota
	// FilterFlip is used for display flip completion.
	FilterFlip
	// FilterVblank is used for the start of each vertical blank.
	FilterVblank
	// FilterPreVblank is used for the end of each vertical blank, i.e. the
	// point prior to the next one.
	FilterPreVblank
)

type (
	// Event is a single notification slot, keyed by (Ident, Filter).
	//
	// Values returned by Queue are snapshots, and modifying them has no
	// effect on the queue.
	Event struct {
		// UserData is opaque to the queue, and returned as-is.
		UserData any

		// Hooks may implement any subset of ResetHook, DeleteHook, and
		// TriggerHook. Implementations are typically a small value type,
		// tagged by the owning subsystem.
		Hooks any

		// Ident identifies the event within its filter.
		Ident uint64

		// FFlags is an occurrence counter, maintained by hooks.
		FFlags uint64

		// Data is the value passed to the most recent trigger, if the
		// hooks record it.
		Data int64

		Filter Filter

		// Triggered indicates the event is pending collection.
		Triggered bool
	}

	// ResetHook customises how a record is reset after it is collected.
	// It is called with the queue's lock held, and must not call the queue.
	ResetHook interface {
		OnReset(ev *Event)
	}

	// DeleteHook is notified after a record has been removed from a queue,
	// either by Queue.DeleteEvent, by replacement via Queue.AddEvent, or by
	// Queue.Close. It is called without the queue's lock held.
	DeleteHook interface {
		OnDelete(q *Queue, ev *Event)
	}

	// TriggerHook customises how a record is triggered. It is called with
	// the queue's lock held, and must not call the queue.
	TriggerHook interface {
		OnTrigger(ev *Event, data int64)
	}

	// Hooks is implemented by values supporting every hook.
	Hooks interface {
		ResetHook
		DeleteHook
		TriggerHook
	}

	key struct {
		ident  uint64
		filter Filter
	}
)

// String returns a short name for the filter.
func (f Filter) String() string {
	switch f {
	case FilterGeneric:
		return `generic`
	case FilterFlip:
		return `flip`
	case FilterVblank:
		return `vblank`
	case FilterPreVblank:
		return `pre_vblank`
	default:
		return fmt.Sprintf(`filter(%d)`, int16(f))
	}
}

func (x *Event) key() key {
	return key{ident: x.Ident, filter: x.Filter}
}

func (x *Event) trigger(data int64) {
	if h, ok := x.Hooks.(TriggerHook); ok {
		h.OnTrigger(x, data)
		return
	}
	x.Triggered = true
}

func (x *Event) reset() {
	if h, ok := x.Hooks.(ResetHook); ok {
		h.OnReset(x)
		return
	}
	x.Triggered = false
	x.FFlags = 0
	x.Data = 0
}

func (x *Event) deleted(q *Queue) {
	if h, ok := x.Hooks.(DeleteHook); ok {
		h.OnDelete(q, x)
	}
}
