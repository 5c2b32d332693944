package videoout

import (
	"context"
)

// NotificationKind identifies the source of a Notification.
type NotificationKind uint8

const (
	// NotifyFlip is published after each completed flip.
	NotifyFlip NotificationKind = iota
	// NotifyVblank is published by VblankBegin, once per open output.
	NotifyVblank
	// NotifyPreVblank is published by VblankEnd, once per open output.
	NotifyPreVblank
)

// Notification mirrors an event triggered on the registered queues of an
// output, for host-side consumers that prefer channels.
type Notification struct {
	Handle Handle
	Kind   NotificationKind
	// Count is the flip count, or the vblank count, after the event.
	Count uint64
	// FlipArg is only set for NotifyFlip.
	FlipArg int64
	// BufferIndex is only set for NotifyFlip.
	BufferIndex int32
}

func (k NotificationKind) String() string {
	switch k {
	case NotifyFlip:
		return `flip`
	case NotifyVblank:
		return `vblank`
	case NotifyPreVblank:
		return `pre_vblank`
	default:
		return `unknown`
	}
}

// Subscribe registers target to receive every Notification, until ctx is
// canceled, or the returned cancel func is called.
// The returned cancel func MUST be called, unless `ctx` is cancelled.
// WARNING: Sends to `target` are blocking, and block the presentation
// goroutine, so callers must always receive promptly.
func (x *VideoOut) Subscribe(ctx context.Context, target chan<- Notification) context.CancelFunc {
	return x.notifier.SubscribeCancel(ctx, nil, target)
}

func (x *VideoOut) publish(n Notification) {
	x.notifier.PublishContext(x.ctx, nil, n)
}
