package gpu

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/videoout"
)

// ErrInvalidImage is returned by Memory.CreateImageObject for a zero
// address or size.
var ErrInvalidImage = errors.New(`gpu: invalid image`)

type (
	// Image describes an image object created by Memory.
	Image struct {
		Address uint64
		Size    uint64
		Format  videoout.PixelFormat
	}

	// Memory implements videoout.GPUMemory as a registry of image objects,
	// keyed by their description, such that registering the same buffer
	// twice yields the same image. The zero value is ready to use.
	Memory struct {
		images map[videoout.ImageID]Image
		ids    map[Image]videoout.ImageID
		mu     sync.Mutex
		next   videoout.ImageID
	}
)

var _ videoout.GPUMemory = (*Memory)(nil)

func (x *Memory) CreateImageObject(address, size uint64, format videoout.PixelFormat) (videoout.ImageID, error) {
	if address == 0 || size == 0 {
		return 0, errors.Wrapf(ErrInvalidImage, `address %#x size %d`, address, size)
	}

	img := Image{Address: address, Size: size, Format: format}

	x.mu.Lock()
	defer x.mu.Unlock()

	if id, ok := x.ids[img]; ok {
		return id, nil
	}
	if x.images == nil {
		x.images = make(map[videoout.ImageID]Image)
		x.ids = make(map[Image]videoout.ImageID)
	}
	x.next++
	x.images[x.next] = img
	x.ids[img] = x.next
	return x.next, nil
}

// Lookup returns the image with the given id.
func (x *Memory) Lookup(id videoout.ImageID) (Image, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	img, ok := x.images[id]
	return img, ok
}

// Len returns the number of image objects.
func (x *Memory) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.images)
}
