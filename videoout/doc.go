// Package videoout implements the video output subsystem of the runtime:
// a table of display outputs, each with up to MaxBuffers registered
// buffers, a bounded FIFO of flip (buffer swap) requests drained by a
// single presentation goroutine, and a vblank broadcaster.
//
// Completion and vblank notifications are delivered by triggering records
// on equeue.Queue instances, registered per output by AddFlipEvent,
// AddVblankEvent, and AddPreVblankEvent. Triggers are level-triggered, and
// coalesce, with the occurrence count carried in equeue.Event.FFlags.
//
// Typical use involves three roles:
//
//   - producers, which call RegisterBuffers, then SubmitFlip, retrying on
//     ErrQueueFull
//   - the presentation goroutine, which calls Flip in a loop
//   - a vblank driver, which calls VblankBegin and VblankEnd once per
//     refresh
//
// Closing an output discards any flips still queued for it, and waiters in
// WaitFlipDone are released.
package videoout
