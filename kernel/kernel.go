// Package kernel exposes the event queue and video output subsystems using
// the conventions of the guest ABI: small integer handles, and Result codes
// rather than Go errors.
package kernel

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/equeue"
	"github.com/joeycumines/go-videoout/internal/handle"
	"github.com/joeycumines/go-videoout/videoout"
	"github.com/joeycumines/logiface"
)

// DefaultMaxQueues is the number of event queues a Kernel supports, unless
// configured otherwise.
const DefaultMaxQueues = 256

type (
	// EqueueHandle identifies an event queue created by EqueueCreate.
	EqueueHandle = handle.Handle

	// Kernel holds the event queues of a guest, and the video output
	// subsystem. Instances must be initialized using the New factory.
	Kernel struct {
		video     *videoout.VideoOut
		queues    *handle.Table[*equeue.Queue]
		logger    *logiface.Logger[logiface.Event]
		maxQueues int
	}
)

// New initializes a Kernel, wrapping video.
func New(video *videoout.VideoOut, opts ...Option) (*Kernel, error) {
	if video == nil {
		return nil, errors.New(`kernel: nil video out`)
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Kernel{
		video:     video,
		queues:    handle.New[*equeue.Queue](cfg.maxQueues),
		logger:    cfg.logger,
		maxQueues: cfg.maxQueues,
	}, nil
}

// VideoOut returns the wrapped video output subsystem.
func (x *Kernel) VideoOut() *videoout.VideoOut {
	return x.video
}

// Close deletes every event queue.
func (x *Kernel) Close() error {
	handles, _ := x.queues.Snapshot()
	for _, h := range handles {
		x.EqueueDelete(h)
	}
	return nil
}

// Equeue returns the queue for h, for host-side consumers.
func (x *Kernel) Equeue(h EqueueHandle) (*equeue.Queue, bool) {
	return x.queues.Get(h)
}

// EqueueCreate creates an event queue.
func (x *Kernel) EqueueCreate(name string) (EqueueHandle, Result) {
	q := equeue.New(name, equeue.WithLogger(x.logger))
	h, err := x.queues.Insert(q)
	if err != nil {
		_ = q.Close()
		x.logger.Warning().
			Str(`equeue`, name).
			Int(`max_queues`, x.maxQueues).
			Log(`too many event queues`)
		return 0, ErrorEINVAL
	}
	return h, OK
}

// EqueueDelete destroys an event queue. Records owned by the video output
// subsystem are detached.
func (x *Kernel) EqueueDelete(h EqueueHandle) Result {
	q, ok := x.queues.Remove(h)
	if !ok {
		return ErrorEBADF
	}
	return ResultOf(q.Close())
}

// EqueueAddEvent adds (or replaces) a record, see equeue.Queue.AddEvent.
func (x *Kernel) EqueueAddEvent(h EqueueHandle, ident uint64, filter equeue.Filter, userData any, hooks any) Result {
	q, ok := x.queues.Get(h)
	if !ok {
		return ErrorEBADF
	}
	return ResultOf(q.AddEvent(equeue.Event{
		Ident:    ident,
		Filter:   filter,
		UserData: userData,
		Hooks:    hooks,
	}))
}

// EqueueTriggerEvent returns ErrorENOENT if there is no such record.
func (x *Kernel) EqueueTriggerEvent(h EqueueHandle, ident uint64, filter equeue.Filter, data int64) Result {
	q, ok := x.queues.Get(h)
	if !ok {
		return ErrorEBADF
	}
	return ResultOf(q.TriggerEvent(ident, filter, data))
}

// EqueueDeleteEvent returns ErrorENOENT if there is no such record.
func (x *Kernel) EqueueDeleteEvent(h EqueueHandle, ident uint64, filter equeue.Filter) Result {
	q, ok := x.queues.Get(h)
	if !ok {
		return ErrorEBADF
	}
	return ResultOf(q.DeleteEvent(ident, filter))
}

// EqueueWait waits for up to maxEvents triggered events. A timeout of 0
// means wait indefinitely, otherwise ErrorETIMEDOUT is returned, with no
// events, once timeoutMicros elapses.
func (x *Kernel) EqueueWait(ctx context.Context, h EqueueHandle, maxEvents int, timeoutMicros uint32) ([]equeue.Event, Result) {
	q, ok := x.queues.Get(h)
	if !ok {
		return nil, ErrorEBADF
	}
	events, err := q.Wait(ctx, maxEvents, time.Duration(timeoutMicros)*time.Microsecond)
	return events, ResultOf(err)
}

// VideoOutOpen returns a positive output handle, or an error result.
func (x *Kernel) VideoOutOpen(userID, busType, index int32) int32 {
	h, err := x.video.Open(userID, busType, index)
	if err != nil {
		return int32(ResultOf(err))
	}
	return int32(h)
}

func (x *Kernel) VideoOutClose(h int32) Result {
	return ResultOf(x.video.Close(videoout.Handle(h)))
}

// VideoOutRegisterBuffers returns the buffer set id, or an error result.
// A nil addresses slice is a null address array, and fails with
// ErrorVideoOutInvalidAddress. An empty one is a zero count, and fails with
// ErrorVideoOutInvalidValue, the same as VideoOut.RegisterBuffers.
func (x *Kernel) VideoOutRegisterBuffers(h, startIndex int32, addresses []uint64, attr *videoout.BufferAttribute) int32 {
	if addresses == nil {
		return int32(ErrorVideoOutInvalidAddress)
	}
	if attr == nil {
		return int32(ErrorVideoOutInvalidValue)
	}
	id, err := x.video.RegisterBuffers(videoout.Handle(h), int(startIndex), addresses, *attr)
	if err != nil {
		return int32(ResultOf(err))
	}
	return int32(id)
}

func (x *Kernel) VideoOutUnregisterBuffers(h, setID int32) Result {
	return ResultOf(x.video.UnregisterBuffers(videoout.Handle(h), int(setID)))
}

func (x *Kernel) VideoOutSubmitFlip(h, bufferIndex int32, flipArg int64) Result {
	return ResultOf(x.video.SubmitFlip(videoout.Handle(h), int(bufferIndex), flipArg))
}

func (x *Kernel) VideoOutWaitFlipDone(ctx context.Context, h, bufferIndex int32) Result {
	return ResultOf(x.video.WaitFlipDone(ctx, videoout.Handle(h), int(bufferIndex)))
}

func (x *Kernel) VideoOutGetFlipStatus(h int32, status *videoout.FlipStatus) Result {
	if status == nil {
		return ErrorVideoOutInvalidAddress
	}
	s, err := x.video.GetFlipStatus(videoout.Handle(h))
	if err != nil {
		return ResultOf(err)
	}
	*status = s
	return OK
}

func (x *Kernel) VideoOutGetVblankStatus(h int32, status *videoout.VblankStatus) Result {
	if status == nil {
		return ErrorVideoOutInvalidAddress
	}
	s, err := x.video.GetVblankStatus(videoout.Handle(h))
	if err != nil {
		return ResultOf(err)
	}
	*status = s
	return OK
}

func (x *Kernel) VideoOutGetResolutionStatus(h int32, status *videoout.ResolutionStatus) Result {
	if status == nil {
		return ErrorVideoOutInvalidAddress
	}
	s, err := x.video.GetResolutionStatus(videoout.Handle(h))
	if err != nil {
		return ResultOf(err)
	}
	*status = s
	return OK
}

func (x *Kernel) VideoOutSetFlipRate(h, rate int32) Result {
	return ResultOf(x.video.SetFlipRate(videoout.Handle(h), videoout.FlipRate(rate)))
}

func (x *Kernel) VideoOutAddFlipEvent(eq EqueueHandle, h int32, userData any) Result {
	q, ok := x.queues.Get(eq)
	if !ok {
		return ErrorVideoOutInvalidEventQueue
	}
	return ResultOf(x.video.AddFlipEvent(q, videoout.Handle(h), userData))
}

func (x *Kernel) VideoOutAddVblankEvent(eq EqueueHandle, h int32, userData any) Result {
	q, ok := x.queues.Get(eq)
	if !ok {
		return ErrorVideoOutInvalidEventQueue
	}
	return ResultOf(x.video.AddVblankEvent(q, videoout.Handle(h), userData))
}

func (x *Kernel) VideoOutAddPreVblankEvent(eq EqueueHandle, h int32, userData any) Result {
	q, ok := x.queues.Get(eq)
	if !ok {
		return ErrorVideoOutInvalidEventQueue
	}
	return ResultOf(x.video.AddPreVblankEvent(q, videoout.Handle(h), userData))
}

func (x *Kernel) VideoOutDeleteFlipEvent(eq EqueueHandle, h int32) Result {
	q, ok := x.queues.Get(eq)
	if !ok {
		return ErrorVideoOutInvalidEventQueue
	}
	return ResultOf(x.video.DeleteFlipEvent(q, videoout.Handle(h)))
}

func (x *Kernel) VideoOutDeleteVblankEvent(eq EqueueHandle, h int32) Result {
	q, ok := x.queues.Get(eq)
	if !ok {
		return ErrorVideoOutInvalidEventQueue
	}
	return ResultOf(x.video.DeleteVblankEvent(q, videoout.Handle(h)))
}
