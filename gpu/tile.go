package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/videoout"
)

const (
	bytesPerPixel = 4

	linearAlign = 0x100
	tiledAlign  = 0x10000

	tiledPitchAlign    = 128
	tiledPitchAlignNeo = 256
)

// ErrInvalidDimensions is returned by Linear.Compute for a zero width or
// height, or a pitch smaller than the width.
var ErrInvalidDimensions = errors.New(`gpu: invalid dimensions`)

// Linear implements videoout.TileCalculator, using a simplified layout: 32
// bits per pixel, with tiled surfaces padded to a multiple of the tile
// pitch, and aligned to 64KiB.
type Linear struct{}

var _ videoout.TileCalculator = Linear{}

func (Linear) Compute(width, height, pitch uint32, tiled, neo bool) (videoout.TileInfo, error) {
	if pitch == 0 {
		pitch = width
	}
	if width == 0 || height == 0 || pitch < width {
		return videoout.TileInfo{}, errors.Wrapf(ErrInvalidDimensions, `%dx%d pitch %d`, width, height, pitch)
	}

	align := uint64(linearAlign)
	if tiled {
		pitchAlign := uint32(tiledPitchAlign)
		if neo {
			pitchAlign = tiledPitchAlignNeo
		}
		pitch = (pitch + pitchAlign - 1) / pitchAlign * pitchAlign
		align = tiledAlign
	}

	size := uint64(pitch) * uint64(height) * bytesPerPixel
	size = (size + align - 1) / align * align

	return videoout.TileInfo{
		Size:  size,
		Align: align,
		Pitch: pitch,
	}, nil
}
