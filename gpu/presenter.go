package gpu

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-videoout/videoout"
	"github.com/joeycumines/logiface"
)

// HeadlessPresenter implements videoout.Presenter without a display.
// Instances must be initialized using the NewHeadlessPresenter factory.
type HeadlessPresenter struct {
	memory  *Memory
	logger  *logiface.Logger[logiface.Event]
	delay   time.Duration
	frames  atomic.Uint64
	blanks  atomic.Uint64
	unknown atomic.Uint64
	last    atomic.Uint64
}

var _ videoout.Presenter = (*HeadlessPresenter)(nil)

// NewHeadlessPresenter initializes a presenter that validates images against
// memory, if not nil. It panics if an option fails to apply.
func NewHeadlessPresenter(memory *Memory, opts ...PresenterOption) *HeadlessPresenter {
	cfg, err := resolvePresenterOptions(opts)
	if err != nil {
		panic(fmt.Sprintf(`gpu: %s`, err))
	}
	return &HeadlessPresenter{
		memory: memory,
		logger: cfg.logger,
		delay:  cfg.delay,
	}
}

// Present fails for images unknown to the memory registry. Image 0 is a
// blank frame.
func (x *HeadlessPresenter) Present(image videoout.ImageID) bool {
	if x.delay > 0 {
		time.Sleep(x.delay)
	}

	if image == 0 {
		x.blanks.Add(1)
	} else if x.memory != nil {
		if _, ok := x.memory.Lookup(image); !ok {
			x.unknown.Add(1)
			return false
		}
	}

	frame := x.frames.Add(1)
	x.last.Store(uint64(image))

	x.logger.Trace().
		Uint64(`frame`, frame).
		Uint64(`image`, uint64(image)).
		Log(`presented`)

	return true
}

// Frames returns the number of frames presented, including blank frames.
func (x *HeadlessPresenter) Frames() uint64 { return x.frames.Load() }

// Blanks returns the number of blank frames presented.
func (x *HeadlessPresenter) Blanks() uint64 { return x.blanks.Load() }

// Failures returns the number of rejected images.
func (x *HeadlessPresenter) Failures() uint64 { return x.unknown.Load() }

// Last returns the most recently presented image.
func (x *HeadlessPresenter) Last() videoout.ImageID { return videoout.ImageID(x.last.Load()) }
