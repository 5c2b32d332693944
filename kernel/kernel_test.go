package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/equeue"
	"github.com/joeycumines/go-videoout/gpu"
	"github.com/joeycumines/go-videoout/internal/handle"
	"github.com/joeycumines/go-videoout/internal/sysclock"
	"github.com/joeycumines/go-videoout/videoout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	var memory gpu.Memory
	video, err := videoout.New(nil, videoout.Collaborators{
		Presenter: gpu.NewHeadlessPresenter(&memory),
		Memory:    &memory,
		Tiler:     gpu.Linear{},
		Clock:     sysclock.New(),
	})
	require.NoError(t, err)
	t.Cleanup(video.Shutdown)
	k, err := New(video)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func testAttribute() *videoout.BufferAttribute {
	return &videoout.BufferAttribute{
		PixelFormat:  videoout.PixelFormatA8R8G8B8Srgb,
		TilingMode:   videoout.TilingModeTile,
		Width:        1920,
		Height:       1080,
		PitchInPixel: 1920,
	}
}

func TestResult_values(t *testing.T) {
	assert.Equal(t, uint32(0x80020002), ErrorENOENT.Code())
	assert.Equal(t, uint32(0x80290012), ErrorVideoOutFlipQueueFull.Code())
	assert.Equal(t, Result(0x80290001-errorCode), ErrorVideoOutInvalidValue)
	assert.True(t, ErrorENOENT.IsError())
	assert.False(t, OK.IsError())
	assert.False(t, Result(3).IsError())
	assert.Equal(t, `KERNEL_ERROR_ENOENT`, ErrorENOENT.String())
	assert.Equal(t, `OK`, OK.String())
	assert.Equal(t, `0x80291234`, Result(0x80291234-errorCode).String())
}

func TestResultOf(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want Result
	}{
		{nil, OK},
		{videoout.ErrInvalidHandle, ErrorVideoOutInvalidHandle},
		{errors.Wrap(videoout.ErrInvalidEventQueue, `x`), ErrorVideoOutInvalidEventQueue},
		{videoout.ErrSlotOccupied, ErrorVideoOutSlotOccupied},
		{videoout.ErrQueueFull, ErrorVideoOutFlipQueueFull},
		{videoout.ErrInvalidValue, ErrorVideoOutInvalidValue},
		{videoout.ErrInvalidAddress, ErrorVideoOutInvalidAddress},
		{videoout.ErrInvalidIndex, ErrorVideoOutInvalidIndex},
		{videoout.ErrResourceBusy, ErrorVideoOutResourceBusy},
		{videoout.ErrWouldDeadlock, ErrorEDEADLK},
		{equeue.ErrNotFound, ErrorENOENT},
		{equeue.ErrTimedOut, ErrorETIMEDOUT},
		{equeue.ErrClosed, ErrorEBADF},
		{equeue.ErrInvalidArgument, ErrorEINVAL},
		{context.DeadlineExceeded, ErrorETIMEDOUT},
		{context.Canceled, ErrorEINTR},
		{errors.New(`other`), ErrorEINVAL},
		// marked with both, the video out code takes precedence
		{errors.Mark(equeue.ErrClosed, videoout.ErrInvalidEventQueue), ErrorVideoOutInvalidEventQueue},
	} {
		assert.Equal(t, tc.want, ResultOf(tc.err), `%v`, tc.err)
	}
}

func TestResultOf_closedQueue(t *testing.T) {
	k := newTestKernel(t)
	h := k.VideoOutOpen(0, videoout.BusTypeMain, 0)
	require.Positive(t, h)
	eq := equeue.New(`closed`)
	require.NoError(t, eq.Close())
	assert.Equal(t, ErrorVideoOutInvalidEventQueue, ResultOf(k.VideoOut().AddFlipEvent(eq, videoout.Handle(h), nil)))
}

func TestNew_invalid(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	video := newTestKernel(t).VideoOut()
	for _, n := range []int{0, -1, handle.MaxCapacity + 1} {
		_, err = New(video, WithMaxQueues(n))
		assert.Error(t, err, n)
	}
	k, err := New(video, nil, WithMaxQueues(handle.MaxCapacity))
	require.NoError(t, err)
	assert.Equal(t, handle.MaxCapacity, k.maxQueues)
}

func TestKernel_equeue(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	eq, r := k.EqueueCreate(`test`)
	require.Equal(t, OK, r)
	assert.Positive(t, eq)

	assert.Equal(t, ErrorENOENT, k.EqueueTriggerEvent(eq, 1, equeue.FilterGeneric, 0))
	assert.Equal(t, ErrorENOENT, k.EqueueDeleteEvent(eq, 1, equeue.FilterGeneric))

	require.Equal(t, OK, k.EqueueAddEvent(eq, 1, equeue.FilterGeneric, `user`, nil))
	require.Equal(t, OK, k.EqueueTriggerEvent(eq, 1, equeue.FilterGeneric, 5))

	events, r := k.EqueueWait(ctx, eq, 8, 1000)
	require.Equal(t, OK, r)
	require.Len(t, events, 1)
	assert.Equal(t, `user`, events[0].UserData)
	assert.True(t, events[0].Triggered)

	events, r = k.EqueueWait(ctx, eq, 8, 1000)
	assert.Equal(t, ErrorETIMEDOUT, r)
	assert.Empty(t, events)

	_, r = k.EqueueWait(ctx, eq, 0, 1000)
	assert.Equal(t, ErrorEINVAL, r)

	require.Equal(t, OK, k.EqueueDeleteEvent(eq, 1, equeue.FilterGeneric))
	require.Equal(t, OK, k.EqueueDelete(eq))

	assert.Equal(t, ErrorEBADF, k.EqueueDelete(eq))
	assert.Equal(t, ErrorEBADF, k.EqueueAddEvent(eq, 1, equeue.FilterGeneric, nil, nil))
	assert.Equal(t, ErrorEBADF, k.EqueueTriggerEvent(eq, 1, equeue.FilterGeneric, 0))
	assert.Equal(t, ErrorEBADF, k.EqueueDeleteEvent(eq, 1, equeue.FilterGeneric))
	_, r = k.EqueueWait(ctx, eq, 1, 0)
	assert.Equal(t, ErrorEBADF, r)
}

func TestKernel_EqueueCreate_exhausted(t *testing.T) {
	k := newTestKernel(t)
	k2, err := New(k.VideoOut(), WithMaxQueues(1))
	require.NoError(t, err)
	defer k2.Close()

	_, r := k2.EqueueCreate(`one`)
	require.Equal(t, OK, r)
	_, r = k2.EqueueCreate(`two`)
	assert.Equal(t, ErrorEINVAL, r)
}

func TestKernel_videoOut_endToEnd(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	h := k.VideoOutOpen(0, videoout.BusTypeMain, 0)
	require.Positive(t, h)

	eq, r := k.EqueueCreate(`flip`)
	require.Equal(t, OK, r)
	require.Equal(t, OK, k.VideoOutAddFlipEvent(eq, h, `user`))
	require.Equal(t, OK, k.VideoOutAddVblankEvent(eq, h, nil))

	id := k.VideoOutRegisterBuffers(h, 0, []uint64{0x100000000, 0x101000000}, testAttribute())
	require.Equal(t, int32(0), id)
	assert.Equal(t, int32(ErrorVideoOutSlotOccupied), k.VideoOutRegisterBuffers(h, 1, []uint64{0x102000000}, testAttribute()))
	assert.Equal(t, int32(ErrorVideoOutInvalidAddress), k.VideoOutRegisterBuffers(h, 3, []uint64{0x102000001}, testAttribute()))
	assert.Equal(t, int32(ErrorVideoOutInvalidValue), k.VideoOutRegisterBuffers(h, 14, []uint64{0x102000000, 0x103000000}, testAttribute()))
	assert.Equal(t, int32(ErrorVideoOutInvalidAddress), k.VideoOutRegisterBuffers(h, 3, nil, testAttribute()))
	assert.Equal(t, int32(ErrorVideoOutInvalidValue), k.VideoOutRegisterBuffers(h, 3, []uint64{}, testAttribute()))
	assert.Equal(t, int32(ErrorVideoOutInvalidValue), k.VideoOutRegisterBuffers(h, 3, []uint64{0x102000000}, nil))

	require.Equal(t, OK, k.VideoOutSubmitFlip(h, 0, 42))
	require.Equal(t, OK, k.VideoOutSubmitFlip(h, 1, 43))
	assert.Equal(t, ErrorVideoOutFlipQueueFull, k.VideoOutSubmitFlip(h, 0, 44))
	assert.Equal(t, ErrorVideoOutInvalidIndex, k.VideoOutSubmitFlip(h, 5, 44))

	video := k.VideoOut()
	require.True(t, video.Flip(ctx, 100*time.Millisecond))

	var status videoout.FlipStatus
	require.Equal(t, OK, k.VideoOutGetFlipStatus(h, &status))
	assert.Equal(t, int64(42), status.FlipArg)
	assert.Equal(t, int32(0), status.CurrentBuffer)
	assert.Equal(t, ErrorVideoOutInvalidAddress, k.VideoOutGetFlipStatus(h, nil))

	events, r := k.EqueueWait(ctx, eq, 8, 100_000)
	require.Equal(t, OK, r)
	require.Len(t, events, 1)
	assert.Equal(t, equeue.FilterFlip, events[0].Filter)
	assert.Equal(t, int64(42), events[0].Data)
	assert.Equal(t, `user`, events[0].UserData)

	require.True(t, video.Flip(ctx, 100*time.Millisecond))
	require.Equal(t, OK, k.VideoOutWaitFlipDone(ctx, h, 1))

	video.VblankBegin()
	var vblank videoout.VblankStatus
	require.Equal(t, OK, k.VideoOutGetVblankStatus(h, &vblank))
	assert.Equal(t, uint64(1), vblank.Count)

	require.Equal(t, OK, k.VideoOutSetFlipRate(h, 1))
	assert.Equal(t, ErrorVideoOutInvalidValue, k.VideoOutSetFlipRate(h, 9))
	var res videoout.ResolutionStatus
	require.Equal(t, OK, k.VideoOutGetResolutionStatus(h, &res))
	assert.Equal(t, videoout.FlipRate30Hz, res.FlipRate)

	require.Equal(t, OK, k.VideoOutUnregisterBuffers(h, 0))
	require.Equal(t, OK, k.VideoOutDeleteVblankEvent(eq, h))
	assert.Equal(t, ErrorENOENT, k.VideoOutDeleteVblankEvent(eq, h))

	require.Equal(t, OK, k.VideoOutClose(h))
	assert.Equal(t, ErrorVideoOutInvalidHandle, k.VideoOutClose(h))
	assert.Equal(t, ErrorVideoOutInvalidHandle, k.VideoOutAddFlipEvent(eq, h, nil))
	assert.Equal(t, ErrorVideoOutInvalidHandle, k.VideoOutSubmitFlip(h, 0, 0))

	q, ok := k.Equeue(eq)
	require.True(t, ok)
	assert.Zero(t, q.Len())
}

func TestKernel_videoOut_invalidEventQueue(t *testing.T) {
	k := newTestKernel(t)
	h := k.VideoOutOpen(0, videoout.BusTypeMain, 0)
	require.Positive(t, h)
	assert.Equal(t, ErrorVideoOutInvalidEventQueue, k.VideoOutAddFlipEvent(0, h, nil))
	assert.Equal(t, ErrorVideoOutInvalidEventQueue, k.VideoOutAddVblankEvent(99, h, nil))
	assert.Equal(t, ErrorVideoOutInvalidEventQueue, k.VideoOutAddPreVblankEvent(-1, h, nil))
	assert.Equal(t, ErrorVideoOutInvalidEventQueue, k.VideoOutDeleteFlipEvent(0, h))
}

func TestKernel_VideoOutOpen_busy(t *testing.T) {
	k := newTestKernel(t)
	require.Positive(t, k.VideoOutOpen(0, videoout.BusTypeMain, 0))
	require.Positive(t, k.VideoOutOpen(0, videoout.BusTypeMain, 0))
	assert.Equal(t, int32(ErrorVideoOutResourceBusy), k.VideoOutOpen(0, videoout.BusTypeMain, 0))
	assert.Equal(t, int32(ErrorVideoOutInvalidValue), k.VideoOutOpen(0, 7, 0))
}

func TestKernel_EqueueDelete_detachesVideoOut(t *testing.T) {
	k := newTestKernel(t)
	h := k.VideoOutOpen(0, videoout.BusTypeMain, 0)
	require.Positive(t, h)
	eq, r := k.EqueueCreate(`test`)
	require.Equal(t, OK, r)
	require.Equal(t, OK, k.VideoOutAddFlipEvent(eq, h, nil))
	require.Equal(t, OK, k.EqueueDelete(eq))

	eq2, r := k.EqueueCreate(`test2`)
	require.Equal(t, OK, r)
	assert.NotEqual(t, eq, eq2)
	require.Equal(t, OK, k.VideoOutAddFlipEvent(eq2, h, nil))
}
