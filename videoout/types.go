package videoout

import (
	"github.com/joeycumines/go-videoout/equeue"
	"github.com/joeycumines/go-videoout/internal/handle"
)

const (
	// MaxBuffers is the number of buffer slots per output.
	MaxBuffers = 16

	// FlipQueueDepth is the maximum number of pending flips, across all
	// outputs.
	FlipQueueDepth = 2

	// BufferIndexBlank may be passed to SubmitFlip to flip to a blank
	// screen.
	BufferIndexBlank = -1

	// BusTypeMain is the only supported bus type.
	BusTypeMain int32 = 0
)

// Event identities, as observed by guests, see AddFlipEvent etc.
const (
	EventFlip      uint64 = 0
	EventVblank    uint64 = 1
	EventPreVblank uint64 = 2
)

// Pixel formats.
const (
	PixelFormatA8R8G8B8Srgb        PixelFormat = 0x80000000
	PixelFormatA8B8G8R8Srgb        PixelFormat = 0x80002200
	PixelFormatA2R10G10B10         PixelFormat = 0x88060000
	PixelFormatA2R10G10B10Srgb     PixelFormat = 0x88000000
	PixelFormatA2R10G10B10Bt2020Pq PixelFormat = 0x88740000
	PixelFormatA16R16G16B16Float   PixelFormat = 0xC1060000
)

// Tiling modes.
const (
	TilingModeTile   TilingMode = 0
	TilingModeLinear TilingMode = 1
)

// Flip rates.
const (
	FlipRate60Hz FlipRate = 0
	FlipRate30Hz FlipRate = 1
	FlipRate20Hz FlipRate = 2
)

type (
	// Handle identifies an open output. The zero value is never valid.
	Handle = handle.Handle

	// PixelFormat is the guest pixel format of a buffer set.
	PixelFormat uint32

	// TilingMode is the memory layout of a buffer set.
	TilingMode uint32

	// FlipRate divides the refresh rate at which flips are presented.
	FlipRate int32

	// ImageID identifies an image object, created by GPUMemory. The zero
	// value is used for blank flips.
	ImageID uint64

	// BufferAttribute describes the buffers of a buffer set.
	BufferAttribute struct {
		PixelFormat  PixelFormat
		TilingMode   TilingMode
		AspectRatio  uint32
		Width        uint32
		Height       uint32
		PitchInPixel uint32
		Option       uint32
	}

	// BufferSet is a batch of buffers registered by one RegisterBuffers
	// call.
	BufferSet struct {
		Attribute  BufferAttribute
		ID         int
		StartIndex int
		Count      int
	}

	// TileInfo is the result of TileCalculator.Compute.
	TileInfo struct {
		// Size is the size of one buffer, in bytes.
		Size uint64
		// Align is the required alignment of buffer addresses.
		Align uint64
		// Pitch is the effective pitch, in pixels.
		Pitch uint32
	}

	// FlipStatus reports the flip progress of an output.
	FlipStatus struct {
		Count       uint64
		ProcessTime uint64
		Tsc         uint64
		SubmitTsc   uint64
		FlipArg     int64
		// FlipPendingNum is the number of flips pending at the time of
		// the last submit or flip, across all outputs.
		FlipPendingNum int32
		// CurrentBuffer is the index of the buffer on screen, or -1.
		CurrentBuffer int32
	}

	// VblankStatus reports vblank progress of an output.
	VblankStatus struct {
		Count       uint64
		ProcessTime uint64
		Tsc         uint64
	}

	// ResolutionStatus describes the output mode.
	ResolutionStatus struct {
		Width       uint32
		Height      uint32
		RefreshRate float64
		FlipRate    FlipRate
	}

	// Presenter makes an image visible. It is called by the presentation
	// goroutine, without any locks held, and may block (e.g. acquiring a
	// swapchain image). A false result is logged and counted, but the flip
	// still completes.
	Presenter interface {
		Present(image ImageID) bool
	}

	// GPUMemory creates image objects, backed by guest memory.
	GPUMemory interface {
		CreateImageObject(address, size uint64, format PixelFormat) (ImageID, error)
	}

	// TileCalculator computes the memory layout of a buffer.
	TileCalculator interface {
		Compute(width, height, pitch uint32, tiled, neo bool) (TileInfo, error)
	}

	// Clock provides guest timestamps.
	Clock interface {
		ReadTsc() uint64
		TscFrequency() uint64
		ProcessTime() uint64
	}

	// Collaborators are the external dependencies of VideoOut. All fields
	// are required.
	Collaborators struct {
		Presenter Presenter
		Memory    GPUMemory
		Tiler     TileCalculator
		Clock     Clock
	}
)

// Vblanks returns the number of refreshes per presented flip, e.g. 2 for
// FlipRate30Hz. Invalid rates are treated as FlipRate60Hz.
func (r FlipRate) Vblanks() int {
	if r < FlipRate60Hz || r > FlipRate20Hz {
		return 1
	}
	return int(r) + 1
}

// Hz returns the presentation rate, given the display refresh rate.
func (r FlipRate) Hz(refreshRate float64) float64 {
	return refreshRate / float64(r.Vblanks())
}

// eventKind is the tag of the hooks attached to records created by
// AddFlipEvent etc.
type eventKind uint8

const (
	kindFlip eventKind = iota
	kindVblank
	kindPreVblank
)

func (k eventKind) ident() uint64 {
	switch k {
	case kindVblank:
		return EventVblank
	case kindPreVblank:
		return EventPreVblank
	default:
		return EventFlip
	}
}

func (k eventKind) filter() equeue.Filter {
	switch k {
	case kindVblank:
		return equeue.FilterVblank
	case kindPreVblank:
		return equeue.FilterPreVblank
	default:
		return equeue.FilterFlip
	}
}

func (k eventKind) String() string {
	return k.filter().String()
}
