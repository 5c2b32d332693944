// Package equeue implements a kqueue-style event multiplexer, used to deliver
// notifications (e.g. display flip completion, vblank) from the runtime to
// guest threads.
//
// A [Queue] owns a set of [Event] records, keyed by (Ident, Filter). Producers
// trigger records by key, and consumers collect triggered records via
// [Queue.GetTriggeredEvents] or [Queue.Wait]. Delivery is level-triggered: a
// trigger sets a flag that persists until it is consumed, meaning no trigger
// is lost if no consumer is waiting at the time. Multiple triggers prior to a
// consume coalesce into one observed event, with [Event.FFlags] carrying the
// number of occurrences, if the record's hooks count them.
//
// Records may carry hooks ([ResetHook], [DeleteHook], [TriggerHook]), which
// let owners customise trigger/reset behavior, and detach their own
// bookkeeping when a record is deleted. Delete hooks are always called
// without the queue's lock held, so they may safely call back into their
// owner.
package equeue
