package videoout

import (
	"github.com/joeycumines/go-videoout/equeue"
)

// VblankBegin signals the start of a vertical blank: for every open output,
// the vblank status is advanced, then each queue registered by
// AddVblankEvent is triggered, with the new count as data.
// It is intended to be called once per refresh, see the vsync package.
func (x *VideoOut) VblankBegin() {
	x.metrics.recordVblank()
	x.broadcastVblank(kindVblank)
}

// VblankEnd signals the end of a vertical blank, advancing the pre-vblank
// status, and triggering each queue registered by AddPreVblankEvent.
func (x *VideoOut) VblankEnd() {
	x.broadcastVblank(kindPreVblank)
}

func (x *VideoOut) broadcastVblank(kind eventKind) {
	notifyKind := NotifyVblank
	if kind == kindPreVblank {
		notifyKind = NotifyPreVblank
	}

	handles, outputs := x.outputs.Snapshot()
	for i, out := range outputs {
		out.mu.Lock()
		if !out.opened {
			out.mu.Unlock()
			continue
		}
		status := &out.vblankStatus
		if kind == kindPreVblank {
			status = &out.preVblankStatus
		}
		status.Count++
		status.ProcessTime = x.collab.Clock.ProcessTime()
		status.Tsc = x.collab.Clock.ReadTsc()
		count := status.Count
		queues := append([]*equeue.Queue(nil), *out.queuesLocked(kind)...)
		out.mu.Unlock()

		for _, eq := range queues {
			_ = eq.TriggerEvent(kind.ident(), kind.filter(), int64(count))
		}

		x.publish(Notification{
			Handle: handles[i],
			Kind:   notifyKind,
			Count:  count,
		})
	}
}
