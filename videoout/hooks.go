package videoout

import (
	"github.com/joeycumines/go-videoout/equeue"
)

// eventHooks are attached to the records created by AddFlipEvent,
// AddVblankEvent, and AddPreVblankEvent.
type eventHooks struct {
	out  *output
	kind eventKind
}

var _ equeue.Hooks = eventHooks{}

func (x eventHooks) OnReset(ev *equeue.Event) {
	ev.Triggered = false
	ev.FFlags = 0
	ev.Data = 0
}

func (x eventHooks) OnTrigger(ev *equeue.Event, data int64) {
	ev.Triggered = true
	ev.FFlags++
	ev.Data = data
}

// OnDelete keeps the registration lists of the output consistent with the
// records actually held by q, e.g. if q is closed, or the record replaced.
func (x eventHooks) OnDelete(q *equeue.Queue, _ *equeue.Event) {
	x.out.removeQueue(x.kind, q)
}

// ownedBy returns a predicate for equeue.Queue.DeleteEventFunc, matching
// only records created for out. A queue's record may be replaced by another
// output's at any time.
func ownedBy(out *output) func(ev *equeue.Event) bool {
	return func(ev *equeue.Event) bool {
		h, ok := ev.Hooks.(eventHooks)
		return ok && h.out == out
	}
}

func newEventRecord(out *output, kind eventKind, userData any) equeue.Event {
	return equeue.Event{
		Ident:    kind.ident(),
		Filter:   kind.filter(),
		UserData: userData,
		Hooks:    eventHooks{out: out, kind: kind},
	}
}
