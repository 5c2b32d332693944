package videoout

import (
	"slices"
	"sync"

	"github.com/joeycumines/go-videoout/equeue"
)

type (
	// output is the state of one open video output. Instances are created
	// by Open, and are never reused, meaning a stale pointer (e.g. held by
	// a queued flip request, or by event hooks) observes opened == false.
	output struct {
		flipQueues      []*equeue.Queue
		vblankQueues    []*equeue.Queue
		preVblankQueues []*equeue.Queue
		sets            []BufferSet
		resolution      ResolutionStatus
		flipStatus      FlipStatus
		vblankStatus    VblankStatus
		preVblankStatus VblankStatus
		slots           [MaxBuffers]bufferSlot
		mu              sync.Mutex
		nextSetID       int
		opened          bool
	}

	bufferSlot struct {
		address uint64
		size    uint64
		image   ImageID
		pitch   uint32
		setID   int
		used    bool
	}
)

func newOutput(resolution ResolutionStatus) *output {
	return &output{
		resolution: resolution,
		flipStatus: FlipStatus{
			FlipArg:       -1,
			CurrentBuffer: -1,
		},
		opened: true,
	}
}

// queuesLocked returns a pointer to the registration list for kind.
func (x *output) queuesLocked(kind eventKind) *[]*equeue.Queue {
	switch kind {
	case kindVblank:
		return &x.vblankQueues
	case kindPreVblank:
		return &x.preVblankQueues
	default:
		return &x.flipQueues
	}
}

func (x *output) hasQueue(kind eventKind, q *equeue.Queue) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Contains(*x.queuesLocked(kind), q)
}

// removeQueue detaches q from the registration list for kind, if present.
func (x *output) removeQueue(kind eventKind, q *equeue.Queue) {
	x.mu.Lock()
	defer x.mu.Unlock()
	list := x.queuesLocked(kind)
	if i := slices.Index(*list, q); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
	}
}

// validSlotLocked reports whether index refers to a registered buffer.
func (x *output) validSlotLocked(index int) bool {
	return index >= 0 && index < MaxBuffers && x.slots[index].used
}

// resetLocked clears all registrations, returning the queues that were
// registered, by kind, such that their records may be deleted after the
// lock is released.
func (x *output) resetLocked() (queues [3][]*equeue.Queue) {
	queues[kindFlip] = x.flipQueues
	queues[kindVblank] = x.vblankQueues
	queues[kindPreVblank] = x.preVblankQueues
	x.flipQueues = nil
	x.vblankQueues = nil
	x.preVblankQueues = nil
	x.slots = [MaxBuffers]bufferSlot{}
	x.sets = nil
	x.nextSetID = 0
	x.opened = false
	return queues
}
