package videoout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const (
	testAlign     = 0x10000
	testFrequency = 1_000_000
)

type presenterFunc func(image ImageID) bool

func (f presenterFunc) Present(image ImageID) bool { return f(image) }

type recordingPresenter struct {
	images []ImageID
	mu     sync.Mutex
}

func (x *recordingPresenter) Present(image ImageID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.images = append(x.images, image)
	return true
}

func (x *recordingPresenter) presented() []ImageID {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]ImageID(nil), x.images...)
}

type fakeMemory struct {
	err     error
	created []uint64
	mu      sync.Mutex
	next    ImageID
}

func (x *fakeMemory) CreateImageObject(address, size uint64, format PixelFormat) (ImageID, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return 0, x.err
	}
	x.next++
	x.created = append(x.created, address)
	return x.next, nil
}

type fakeTiler struct {
	err  error
	info TileInfo
}

func (x fakeTiler) Compute(width, height, pitch uint32, tiled, neo bool) (TileInfo, error) {
	if x.err != nil {
		return TileInfo{}, x.err
	}
	return x.info, nil
}

// fakeClock advances by 1ms (1000 ticks) per ReadTsc.
type fakeClock struct {
	tsc atomic.Uint64
}

func (x *fakeClock) ReadTsc() uint64      { return x.tsc.Add(1000) }
func (x *fakeClock) TscFrequency() uint64 { return testFrequency }
func (x *fakeClock) ProcessTime() uint64  { return x.tsc.Load() }

func testCollaborators(presenter Presenter) Collaborators {
	if presenter == nil {
		presenter = new(recordingPresenter)
	}
	return Collaborators{
		Presenter: presenter,
		Memory:    new(fakeMemory),
		Tiler:     fakeTiler{info: TileInfo{Size: 1920 * 1080 * 4, Align: testAlign, Pitch: 1920}},
		Clock:     new(fakeClock),
	}
}

func newTestVideoOut(t *testing.T, collab Collaborators) *VideoOut {
	t.Helper()
	x, err := New(nil, collab, WithWarningRates(nil))
	require.NoError(t, err)
	t.Cleanup(x.Shutdown)
	return x
}

func testAttribute() BufferAttribute {
	return BufferAttribute{
		PixelFormat:  PixelFormatA8R8G8B8Srgb,
		TilingMode:   TilingModeLinear,
		Width:        1920,
		Height:       1080,
		PitchInPixel: 1920,
	}
}

func testAddresses(n int) []uint64 {
	addresses := make([]uint64, n)
	for i := range addresses {
		addresses[i] = uint64(i+1) * 0x1000000
	}
	return addresses
}

// openWithBuffers opens an output, and registers n buffers from slot 0.
func openWithBuffers(t *testing.T, x *VideoOut, n int) Handle {
	t.Helper()
	h, err := x.Open(0, BusTypeMain, 0)
	require.NoError(t, err)
	_, err = x.RegisterBuffers(h, 0, testAddresses(n), testAttribute())
	require.NoError(t, err)
	return h
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

var errTest = errors.New(`test error`)
