package videoout

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-bigbuff"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-videoout/equeue"
	"github.com/joeycumines/go-videoout/internal/handle"
	"github.com/joeycumines/logiface"
)

// VideoOut is the video output subsystem: a table of outputs, the flip
// scheduler shared by all outputs, and the vblank broadcaster.
// Instances must be initialized using the New factory.
//
// Lock order: outputs table, then flip queue, then output, then event
// queue.
type VideoOut struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logiface.Logger[logiface.Event]
	warnings *catrate.Limiter
	outputs  *handle.Table[*output]
	metrics  *metrics
	collab   Collaborators
	flips    flipQueue
	notifier bigbuff.Notifier
	config   Config
}

// New initializes a VideoOut. All collaborators are required.
// The Shutdown method should be called to release resources.
func New(config *Config, collab Collaborators, opts ...Option) (*VideoOut, error) {
	cfg, err := config.resolve()
	if err != nil {
		return nil, err
	}
	options, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	switch {
	case collab.Presenter == nil:
		return nil, errors.New(`videoout: nil presenter`)
	case collab.Memory == nil:
		return nil, errors.New(`videoout: nil gpu memory`)
	case collab.Tiler == nil:
		return nil, errors.New(`videoout: nil tile calculator`)
	case collab.Clock == nil:
		return nil, errors.New(`videoout: nil clock`)
	}
	warnings, err := newWarningLimiter(options.warningRates)
	if err != nil {
		return nil, err
	}

	x := &VideoOut{
		logger:   options.logger,
		warnings: warnings,
		outputs:  handle.New[*output](cfg.MaxOutputs),
		metrics:  newMetrics(),
		collab:   collab,
		config:   cfg,
	}
	x.ctx, x.cancel = context.WithCancel(context.Background())
	x.flips.init()

	return x, nil
}

// Config returns the resolved configuration.
func (x *VideoOut) Config() Config {
	return x.config
}

// Metrics returns a snapshot of the counters.
func (x *VideoOut) Metrics() Metrics {
	return x.metrics.snapshot()
}

// Shutdown closes every open output, and wakes any goroutine blocked in
// Flip or WaitFlipDone. Subsequent calls to Open fail with ErrResourceBusy.
// Shutdown is idempotent.
func (x *VideoOut) Shutdown() {
	x.flips.close()
	handles, _ := x.outputs.Snapshot()
	for _, h := range handles {
		_ = x.Close(h)
	}
	x.cancel()
}

// Open opens an output, returning its handle. ErrResourceBusy is returned if
// the maximum number of outputs are open.
func (x *VideoOut) Open(userID, busType, index int32) (Handle, error) {
	if busType != BusTypeMain {
		return 0, invalidValuef(`bus type %d`, busType)
	}
	if index != 0 {
		return 0, invalidValuef(`index %d`, index)
	}
	if x.flips.isClosed() {
		return 0, errors.Wrap(ErrResourceBusy, `shut down`)
	}

	h, err := x.outputs.Insert(newOutput(x.config.resolution()))
	if err != nil {
		return 0, errors.Wrapf(ErrResourceBusy, `%d outputs open`, x.outputs.Cap())
	}

	x.logger.Debug().
		Int64(`handle`, int64(h)).
		Int64(`user`, int64(userID)).
		Log(`opened video output`)

	return h, nil
}

// Close closes the output. Any flips still queued for the output are
// discarded, releasing waiters, and every registered event record is
// deleted from its queue.
func (x *VideoOut) Close(h Handle) error {
	out, ok := x.outputs.Remove(h)
	if !ok {
		return invalidHandle(h)
	}

	dropped := x.flips.purge(out)

	out.mu.Lock()
	queues := out.resetLocked()
	out.mu.Unlock()

	for kind, list := range queues {
		kind := eventKind(kind)
		for _, q := range list {
			if err := q.DeleteEventFunc(kind.ident(), kind.filter(), ownedBy(out)); err != nil &&
				!errors.Is(err, equeue.ErrNotFound) && !errors.Is(err, equeue.ErrClosed) {
				x.logger.Err().
					Err(err).
					Int64(`handle`, int64(h)).
					Log(`failed to delete event`)
			}
		}
	}

	if dropped != 0 {
		x.metrics.recordDropped(dropped)
	}

	x.logger.Debug().
		Int64(`handle`, int64(h)).
		Int(`dropped_flips`, dropped).
		Log(`closed video output`)

	return nil
}

// RegisterBuffers registers len(addresses) buffers, in consecutive slots
// starting at startIndex, returning the id of the new buffer set. Either
// every buffer is registered, or none are.
func (x *VideoOut) RegisterBuffers(h Handle, startIndex int, addresses []uint64, attr BufferAttribute) (int, error) {
	count := len(addresses)
	if startIndex < 0 || startIndex > MaxBuffers-1 ||
		count < 1 || count > MaxBuffers ||
		startIndex+count > MaxBuffers-1 {
		return 0, invalidValuef(`start index %d count %d`, startIndex, count)
	}

	out, err := x.lookup(h)
	if err != nil {
		return 0, err
	}

	info, err := x.collab.Tiler.Compute(attr.Width, attr.Height, attr.PitchInPixel, attr.TilingMode == TilingModeTile, x.config.Neo)
	if err != nil {
		return 0, classify(ErrInvalidValue, err, `videoout: compute tile info`)
	}

	out.mu.Lock()
	defer out.mu.Unlock()

	if !out.opened {
		return 0, invalidHandle(h)
	}

	for i, address := range addresses {
		index := startIndex + i
		if out.slots[index].used {
			return 0, errors.Wrapf(ErrSlotOccupied, `slot %d`, index)
		}
		if info.Align != 0 && address%info.Align != 0 {
			return 0, errors.Wrapf(ErrInvalidAddress, `slot %d address %#x align %#x`, index, address, info.Align)
		}
	}

	images := make([]ImageID, count)
	for i, address := range addresses {
		images[i], err = x.collab.Memory.CreateImageObject(address, info.Size, attr.PixelFormat)
		if err != nil {
			return 0, errors.Wrapf(err, `videoout: create image for slot %d`, startIndex+i)
		}
	}

	setID := out.nextSetID
	out.nextSetID++
	out.sets = append(out.sets, BufferSet{
		Attribute:  attr,
		ID:         setID,
		StartIndex: startIndex,
		Count:      count,
	})
	for i, address := range addresses {
		out.slots[startIndex+i] = bufferSlot{
			address: address,
			size:    info.Size,
			image:   images[i],
			pitch:   info.Pitch,
			setID:   setID,
			used:    true,
		}
	}

	x.logger.Debug().
		Int64(`handle`, int64(h)).
		Int(`set`, setID).
		Int(`start`, startIndex).
		Int(`count`, count).
		Log(`registered buffers`)

	return setID, nil
}

// UnregisterBuffers releases every slot of a buffer set. ErrResourceBusy is
// returned if a queued flip refers to any of the buffers.
func (x *VideoOut) UnregisterBuffers(h Handle, setID int) error {
	out, err := x.lookup(h)
	if err != nil {
		return err
	}

	x.flips.mu.Lock()
	defer x.flips.mu.Unlock()
	out.mu.Lock()
	defer out.mu.Unlock()

	if !out.opened {
		return invalidHandle(h)
	}

	i := -1
	for j, set := range out.sets {
		if set.ID == setID {
			i = j
			break
		}
	}
	if i < 0 {
		return invalidValuef(`buffer set %d`, setID)
	}
	set := out.sets[i]

	for _, req := range x.flips.requests {
		if req.out == out && int(req.index) >= set.StartIndex && int(req.index) < set.StartIndex+set.Count {
			return errors.Wrapf(ErrResourceBusy, `buffer %d pending flip`, req.index)
		}
	}

	for index := set.StartIndex; index < set.StartIndex+set.Count; index++ {
		out.slots[index] = bufferSlot{}
	}
	out.sets = append(out.sets[:i], out.sets[i+1:]...)

	return nil
}

// BufferSets returns the registered buffer sets, in registration order.
func (x *VideoOut) BufferSets(h Handle) ([]BufferSet, error) {
	out, err := x.lookup(h)
	if err != nil {
		return nil, err
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return nil, invalidHandle(h)
	}
	return append([]BufferSet(nil), out.sets...), nil
}

// GetFlipStatus returns a copy of the flip status of the output.
func (x *VideoOut) GetFlipStatus(h Handle) (FlipStatus, error) {
	out, err := x.lookup(h)
	if err != nil {
		return FlipStatus{}, err
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return FlipStatus{}, invalidHandle(h)
	}
	return out.flipStatus, nil
}

// GetVblankStatus returns a copy of the vblank status of the output.
func (x *VideoOut) GetVblankStatus(h Handle) (VblankStatus, error) {
	out, err := x.lookup(h)
	if err != nil {
		return VblankStatus{}, err
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return VblankStatus{}, invalidHandle(h)
	}
	return out.vblankStatus, nil
}

// GetPreVblankStatus returns a copy of the pre-vblank status of the output.
func (x *VideoOut) GetPreVblankStatus(h Handle) (VblankStatus, error) {
	out, err := x.lookup(h)
	if err != nil {
		return VblankStatus{}, err
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return VblankStatus{}, invalidHandle(h)
	}
	return out.preVblankStatus, nil
}

// GetResolutionStatus returns the output mode.
func (x *VideoOut) GetResolutionStatus(h Handle) (ResolutionStatus, error) {
	out, err := x.lookup(h)
	if err != nil {
		return ResolutionStatus{}, err
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return ResolutionStatus{}, invalidHandle(h)
	}
	return out.resolution, nil
}

// SetFlipRate sets the rate at which the presentation goroutine is
// expected to flip, see FlipRate.Hz.
func (x *VideoOut) SetFlipRate(h Handle, rate FlipRate) error {
	if rate < FlipRate60Hz || rate > FlipRate20Hz {
		return invalidValuef(`flip rate %d`, rate)
	}
	out, err := x.lookup(h)
	if err != nil {
		return err
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if !out.opened {
		return invalidHandle(h)
	}
	out.resolution.FlipRate = rate
	return nil
}

// FlipRate returns the slowest flip rate set on any open output, which is
// the rate the presentation goroutine should be driven at.
func (x *VideoOut) FlipRate() FlipRate {
	_, outputs := x.outputs.Snapshot()
	rate := FlipRate60Hz
	for _, out := range outputs {
		out.mu.Lock()
		if out.opened && out.resolution.FlipRate > rate {
			rate = out.resolution.FlipRate
		}
		out.mu.Unlock()
	}
	return rate
}

// AddFlipEvent registers eq to receive an event (EventFlip, FilterFlip)
// after each completed flip of the output, with the flip arg as data.
func (x *VideoOut) AddFlipEvent(eq *equeue.Queue, h Handle, userData any) error {
	return x.addEvent(eq, h, kindFlip, userData)
}

// AddVblankEvent registers eq to receive an event (EventVblank,
// FilterVblank) at the start of each vblank, with the vblank count as data.
func (x *VideoOut) AddVblankEvent(eq *equeue.Queue, h Handle, userData any) error {
	return x.addEvent(eq, h, kindVblank, userData)
}

// AddPreVblankEvent registers eq to receive an event (EventPreVblank,
// FilterPreVblank) at the end of each vblank, with the count as data.
func (x *VideoOut) AddPreVblankEvent(eq *equeue.Queue, h Handle, userData any) error {
	return x.addEvent(eq, h, kindPreVblank, userData)
}

// DeleteFlipEvent reverses AddFlipEvent.
func (x *VideoOut) DeleteFlipEvent(eq *equeue.Queue, h Handle) error {
	return x.deleteEvent(eq, h, kindFlip)
}

// DeleteVblankEvent reverses AddVblankEvent.
func (x *VideoOut) DeleteVblankEvent(eq *equeue.Queue, h Handle) error {
	return x.deleteEvent(eq, h, kindVblank)
}

// DeletePreVblankEvent reverses AddPreVblankEvent.
func (x *VideoOut) DeletePreVblankEvent(eq *equeue.Queue, h Handle) error {
	return x.deleteEvent(eq, h, kindPreVblank)
}

func (x *VideoOut) addEvent(eq *equeue.Queue, h Handle, kind eventKind, userData any) error {
	if eq == nil {
		return ErrInvalidEventQueue
	}
	out, err := x.lookup(h)
	if err != nil {
		return err
	}

	out.mu.Lock()
	if !out.opened {
		out.mu.Unlock()
		return invalidHandle(h)
	}
	if slices.Contains(*out.queuesLocked(kind), eq) {
		out.mu.Unlock()
		return nil
	}
	out.mu.Unlock()

	// may replace (and delete) a record owned by another output
	if err := eq.AddEvent(newEventRecord(out, kind, userData)); err != nil {
		return classify(ErrInvalidEventQueue, err, `videoout: add %s event`, kind)
	}

	out.mu.Lock()
	if !out.opened {
		out.mu.Unlock()
		// raced with Close
		_ = eq.DeleteEventFunc(kind.ident(), kind.filter(), ownedBy(out))
		return invalidHandle(h)
	}
	list := out.queuesLocked(kind)
	if !slices.Contains(*list, eq) {
		*list = append(*list, eq)
	}
	out.mu.Unlock()

	x.logger.Debug().
		Int64(`handle`, int64(h)).
		Stringer(`filter`, kind).
		Str(`equeue`, eq.Name()).
		Log(`added event`)

	return nil
}

func (x *VideoOut) deleteEvent(eq *equeue.Queue, h Handle, kind eventKind) error {
	if eq == nil {
		return ErrInvalidEventQueue
	}
	out, err := x.lookup(h)
	if err != nil {
		return err
	}
	out.mu.Lock()
	opened := out.opened
	registered := slices.Contains(*out.queuesLocked(kind), eq)
	out.mu.Unlock()
	if !opened {
		return invalidHandle(h)
	}
	if !registered {
		return errors.Wrapf(equeue.ErrNotFound, `videoout: %s event`, kind)
	}
	// the record's hooks detach eq from the output
	return eq.DeleteEventFunc(kind.ident(), kind.filter(), ownedBy(out))
}

func (x *VideoOut) lookup(h Handle) (*output, error) {
	if out, ok := x.outputs.Get(h); ok {
		return out, nil
	}
	return nil, invalidHandle(h)
}

func invalidHandle(h Handle) error {
	return errors.Wrapf(ErrInvalidHandle, `handle %d`, h)
}
