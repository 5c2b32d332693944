package videoout

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/equeue"
)

type (
	// flipQueue is the FIFO of pending flips, shared by all outputs, and
	// drained by a single presentation goroutine (see VideoOut.Flip).
	flipQueue struct {
		requests  []flipRequest
		submitted sync.Cond
		completed sync.Cond
		mu        sync.Mutex
		seq       uint64
		// goroutine id of the most recent Flip caller
		presenter atomic.Uint64
		closed    bool
	}

	// flipRequest is immutable once enqueued.
	flipRequest struct {
		out       *output
		seq       uint64
		submitTsc uint64
		flipArg   int64
		image     ImageID
		handle    Handle
		index     int32
	}
)

func (x *flipQueue) init() {
	x.requests = make([]flipRequest, 0, FlipQueueDepth)
	x.submitted.L = &x.mu
	x.completed.L = &x.mu
}

func (x *flipQueue) close() {
	x.mu.Lock()
	x.closed = true
	x.submitted.Broadcast()
	x.completed.Broadcast()
	x.mu.Unlock()
}

func (x *flipQueue) isClosed() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closed
}

// wakeSubmitted wakes any goroutine blocked in Flip, so it may recheck its
// deadline or context.
func (x *flipQueue) wakeSubmitted() {
	x.mu.Lock()
	x.submitted.Broadcast()
	x.mu.Unlock()
}

func (x *flipQueue) wakeCompleted() {
	x.mu.Lock()
	x.completed.Broadcast()
	x.mu.Unlock()
}

func (x *flipQueue) pendingLocked(out *output, index int32) bool {
	for _, req := range x.requests {
		if req.out == out && req.index == index {
			return true
		}
	}
	return false
}

// purge discards every request for out, returning the number removed.
func (x *flipQueue) purge(out *output) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := len(x.requests)
	x.requests = slices.DeleteFunc(x.requests, func(req flipRequest) bool { return req.out == out })
	n -= len(x.requests)
	if n != 0 {
		x.completed.Broadcast()
	}
	return n
}

// SubmitFlip queues a flip of the output to the buffer at index, which must
// be registered, or BufferIndexBlank. This method never blocks: if
// FlipQueueDepth flips are already pending, across all outputs,
// ErrQueueFull is returned, and the caller should retry later.
func (x *VideoOut) SubmitFlip(h Handle, index int, flipArg int64) error {
	out, err := x.lookup(h)
	if err != nil {
		return err
	}

	q := &x.flips
	q.mu.Lock()
	out.mu.Lock()

	if !out.opened {
		out.mu.Unlock()
		q.mu.Unlock()
		return invalidHandle(h)
	}

	var image ImageID
	if index != BufferIndexBlank {
		if !out.validSlotLocked(index) {
			out.mu.Unlock()
			q.mu.Unlock()
			return errors.Wrapf(ErrInvalidIndex, `buffer %d`, index)
		}
		image = out.slots[index].image
	}

	if len(q.requests) >= FlipQueueDepth {
		out.mu.Unlock()
		q.mu.Unlock()
		x.metrics.recordQueueFull()
		x.warning(`flip queue full`, h).
			Int(`index`, index).
			Int64(`flip_arg`, flipArg).
			Log(`flip queue full`)
		return ErrQueueFull
	}

	q.seq++
	q.requests = append(q.requests, flipRequest{
		out:       out,
		seq:       q.seq,
		submitTsc: x.collab.Clock.ReadTsc(),
		flipArg:   flipArg,
		image:     image,
		handle:    h,
		index:     int32(index),
	})
	out.flipStatus.FlipPendingNum = int32(len(q.requests))

	out.mu.Unlock()
	q.submitted.Signal()
	q.mu.Unlock()

	return nil
}

// Flip presents the oldest pending flip, waiting up to timeout for one to
// be submitted, where a timeout of 0 means wait indefinitely, and a
// negative timeout means don't wait. False is returned if there was no
// flip to present, or ctx was canceled, or the VideoOut was shut down.
//
// Flip must be called by a single goroutine, the presentation goroutine.
// The presenter is called without any locks held. Once it returns, every
// queue registered by AddFlipEvent is triggered, and WaitFlipDone callers
// are released. A flip whose output was closed while being presented is
// completed silently.
func (x *VideoOut) Flip(ctx context.Context, timeout time.Duration) bool {
	q := &x.flips
	q.presenter.Store(getGoroutineID())

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, q.wakeSubmitted)
		defer timer.Stop()
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, q.wakeSubmitted)
		defer stop()
	}

	q.mu.Lock()
	for len(q.requests) == 0 {
		if q.closed || ctx.Err() != nil || timeout < 0 ||
			(!deadline.IsZero() && !time.Now().Before(deadline)) {
			q.mu.Unlock()
			return false
		}
		q.submitted.Wait()
	}
	req := q.requests[0]
	q.mu.Unlock()

	presented := x.collab.Presenter.Present(req.image)

	q.mu.Lock()
	if len(q.requests) == 0 || q.requests[0].seq != req.seq {
		// purged by Close
		q.mu.Unlock()
		x.logger.Debug().
			Int64(`handle`, int64(req.handle)).
			Int64(`flip_arg`, req.flipArg).
			Log(`dropped flip of closed output`)
		return true
	}
	q.requests = append(q.requests[:0], q.requests[1:]...)

	tsc := x.collab.Clock.ReadTsc()
	out := req.out
	out.mu.Lock()
	status := &out.flipStatus
	status.Count++
	status.ProcessTime = x.collab.Clock.ProcessTime()
	status.Tsc = tsc
	status.SubmitTsc = req.submitTsc
	status.FlipArg = req.flipArg
	status.CurrentBuffer = req.index
	status.FlipPendingNum = int32(len(q.requests))
	count := status.Count
	queues := append([]*equeue.Queue(nil), out.flipQueues...)
	out.mu.Unlock()

	for _, eq := range queues {
		_ = eq.TriggerEvent(EventFlip, equeue.FilterFlip, req.flipArg)
	}

	q.completed.Broadcast()
	q.mu.Unlock()

	x.metrics.recordFlip(tscDuration(tsc-req.submitTsc, x.collab.Clock.TscFrequency()), presented)
	if !presented {
		x.warning(`present failed`, req.handle).
			Int(`index`, int(req.index)).
			Int64(`flip_arg`, req.flipArg).
			Log(`presenter failed`)
	}

	x.publish(Notification{
		Handle:      req.handle,
		Kind:        NotifyFlip,
		Count:       count,
		FlipArg:     req.flipArg,
		BufferIndex: req.index,
	})

	return true
}

// WaitFlipDone blocks until no flip of the buffer at index, for the output,
// is pending. It returns ErrWouldDeadlock if called from the presentation
// goroutine while such a flip is pending, and ctx.Err() if ctx is canceled.
func (x *VideoOut) WaitFlipDone(ctx context.Context, h Handle, index int) error {
	out, err := x.lookup(h)
	if err != nil {
		return err
	}

	q := &x.flips

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, q.wakeCompleted)
		defer stop()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var checked bool
	for q.pendingLocked(out, int32(index)) {
		if !checked {
			if getGoroutineID() == q.presenter.Load() {
				return errors.Wrapf(ErrWouldDeadlock, `buffer %d`, index)
			}
			checked = true
		}
		if q.closed {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		q.completed.Wait()
	}

	return nil
}

// PendingFlips returns the number of queued flips, across all outputs.
func (x *VideoOut) PendingFlips() int {
	x.flips.mu.Lock()
	defer x.flips.mu.Unlock()
	return len(x.flips.requests)
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
