package vsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joeycumines/go-videoout/gpu"
	"github.com/joeycumines/go-videoout/internal/sysclock"
	"github.com/joeycumines/go-videoout/videoout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
	mu    sync.Mutex
}

func (x *recorder) VblankBegin() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls = append(x.calls, `begin`)
}

func (x *recorder) VblankEnd() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls = append(x.calls, `end`)
}

func (x *recorder) get() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.calls...)
}

func TestNew_invalid(t *testing.T) {
	_, err := New(nil, 60)
	assert.Error(t, err)
	for _, rate := range []float64{0, -1} {
		_, err = New(new(recorder), rate)
		assert.ErrorIs(t, err, ErrInvalidRefreshRate)
	}
}

func TestNew_interval(t *testing.T) {
	d, err := New(new(recorder), 59.94)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(16683350), d.Interval())
}

func TestNew_options(t *testing.T) {
	d, err := New(new(recorder), 60, nil)
	require.NoError(t, err)
	assert.NotNil(t, d.clock)
	assert.Nil(t, d.flipper)

	mock := clock.NewMock()
	f := &flipRecorder{rate: videoout.FlipRate30Hz}
	d, err = New(new(recorder), 60, WithClock(mock), WithFlipper(f), WithLogger(nil))
	require.NoError(t, err)
	assert.Same(t, mock, d.clock)
	assert.Same(t, f, d.flipper)
}

// runTicks runs d until it has completed at least n ticks.
func runTicks(t *testing.T, d *Driver, mock *clock.Mock, n uint64) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// wait for the ticker to be registered
	require.Eventually(t, func() bool {
		mock.Add(d.Interval())
		return d.Ticks() != 0
	}, 5*time.Second, time.Millisecond)

	for i := d.Ticks(); i < n; i = d.Ticks() {
		mock.Add(d.Interval())
		require.Eventually(t, func() bool { return d.Ticks() > i }, 5*time.Second, time.Millisecond)
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDriver_Run(t *testing.T) {
	mock := clock.NewMock()
	r := new(recorder)
	d, err := New(r, 60, WithClock(mock))
	require.NoError(t, err)

	runTicks(t, d, mock, 3)

	calls := r.get()
	require.Len(t, calls, int(d.Ticks())*2)
	for i := 0; i < len(calls); i += 2 {
		assert.Equal(t, []string{`begin`, `end`}, calls[i:i+2])
	}
	assert.Zero(t, d.Flips())
}

type flipRecorder struct {
	recorder
	rate videoout.FlipRate
}

func (x *flipRecorder) FlipRate() videoout.FlipRate { return x.rate }

func (x *flipRecorder) Flip(ctx context.Context, timeout time.Duration) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls = append(x.calls, `flip`)
	return timeout < 0 && ctx.Err() == nil
}

func TestDriver_Run_flipRate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		rate    videoout.FlipRate
		vblanks int
	}{
		{`60hz`, videoout.FlipRate60Hz, 1},
		{`30hz`, videoout.FlipRate30Hz, 2},
		{`20hz`, videoout.FlipRate20Hz, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mock := clock.NewMock()
			r := &flipRecorder{rate: tc.rate}
			d, err := New(r, 60, WithClock(mock), WithFlipper(r))
			require.NoError(t, err)

			runTicks(t, d, mock, 7)

			ticks := d.Ticks()
			assert.Equal(t, ticks/uint64(tc.vblanks), d.Flips())

			// each flip happens within a vblank, every vblanks refreshes
			var want []string
			for i := 1; i <= int(ticks); i++ {
				want = append(want, `begin`)
				if i%tc.vblanks == 0 {
					want = append(want, `flip`)
				}
				want = append(want, `end`)
			}
			assert.Equal(t, want, r.get())
		})
	}
}

func TestDriver_Run_videoOut(t *testing.T) {
	var memory gpu.Memory
	presenter := gpu.NewHeadlessPresenter(&memory)
	video, err := videoout.New(nil, videoout.Collaborators{
		Presenter: presenter,
		Memory:    &memory,
		Tiler:     gpu.Linear{},
		Clock:     sysclock.New(),
	})
	require.NoError(t, err)
	defer video.Shutdown()

	h, err := video.Open(0, videoout.BusTypeMain, 0)
	require.NoError(t, err)
	_, err = video.RegisterBuffers(h, 0, []uint64{0x1000000, 0x2000000}, videoout.BufferAttribute{
		PixelFormat:  videoout.PixelFormatA8R8G8B8Srgb,
		TilingMode:   videoout.TilingModeLinear,
		Width:        640,
		Height:       480,
		PitchInPixel: 640,
	})
	require.NoError(t, err)
	require.NoError(t, video.SetFlipRate(h, videoout.FlipRate30Hz))
	require.NoError(t, video.SubmitFlip(h, 0, 1))
	require.NoError(t, video.SubmitFlip(h, 1, 2))

	mock := clock.NewMock()
	d, err := New(video, video.Config().RefreshRate, WithClock(mock), WithFlipper(video))
	require.NoError(t, err)

	runTicks(t, d, mock, 4)

	assert.Equal(t, uint64(2), d.Flips())
	assert.Equal(t, uint64(2), presenter.Frames())
	assert.Zero(t, video.PendingFlips())

	vblank, err := video.GetVblankStatus(h)
	require.NoError(t, err)
	assert.Equal(t, d.Ticks(), vblank.Count)

	status, err := video.GetFlipStatus(h)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), status.Count)
	assert.Equal(t, int64(2), status.FlipArg)
}
