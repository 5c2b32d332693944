// Package vsync drives the vblank broadcaster of a videoout.VideoOut, at
// the display refresh rate, and optionally its presentation, at the flip
// rate.
package vsync

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/videoout"
	"github.com/joeycumines/logiface"
)

// ErrInvalidRefreshRate is returned by New for a non-positive rate.
var ErrInvalidRefreshRate = errors.New(`vsync: invalid refresh rate`)

type (
	// Broadcaster is implemented by *videoout.VideoOut.
	Broadcaster interface {
		VblankBegin()
		VblankEnd()
	}

	// Flipper is implemented by *videoout.VideoOut.
	Flipper interface {
		FlipRate() videoout.FlipRate
		Flip(ctx context.Context, timeout time.Duration) bool
	}

	// Driver calls VblankBegin, then VblankEnd, once per refresh. If
	// configured with a Flipper, it is also the presentation goroutine,
	// presenting at most one flip every FlipRate.Vblanks refreshes,
	// between VblankBegin and VblankEnd.
	// Instances must be initialized using the New factory.
	Driver struct {
		target   Broadcaster
		flipper  Flipper
		clock    clock.Clock
		logger   *logiface.Logger[logiface.Event]
		interval time.Duration
		ticks    atomic.Uint64
		flips    atomic.Uint64
	}
)

// New initializes a Driver for the given refresh rate, in Hz.
func New(target Broadcaster, refreshRate float64, opts ...Option) (*Driver, error) {
	if target == nil {
		return nil, errors.New(`vsync: nil target`)
	}
	if !(refreshRate > 0) {
		return nil, errors.Wrapf(ErrInvalidRefreshRate, `%v`, refreshRate)
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Driver{
		target:   target,
		flipper:  cfg.flipper,
		clock:    cfg.clock,
		logger:   cfg.logger,
		interval: time.Duration(float64(time.Second) / refreshRate),
	}, nil
}

// Interval returns the time between ticks.
func (x *Driver) Interval() time.Duration {
	return x.interval
}

// Ticks returns the number of completed ticks.
func (x *Driver) Ticks() uint64 {
	return x.ticks.Load()
}

// Flips returns the number of flips presented.
func (x *Driver) Flips() uint64 {
	return x.flips.Load()
}

// Run ticks until ctx is canceled, returning ctx.Err(). Ticks that are
// missed, because the target is slow, are dropped rather than queued.
func (x *Driver) Run(ctx context.Context) error {
	ticker := x.clock.Ticker(x.interval)
	defer ticker.Stop()

	x.logger.Debug().
		Dur(`interval`, x.interval).
		Bool(`flipper`, x.flipper != nil).
		Log(`vsync started`)

	// refreshes since the last flip
	var since int

	for {
		select {
		case <-ctx.Done():
			x.logger.Debug().
				Uint64(`ticks`, x.ticks.Load()).
				Uint64(`flips`, x.flips.Load()).
				Log(`vsync stopped`)
			return ctx.Err()
		case <-ticker.C:
			x.target.VblankBegin()
			if x.flipper != nil {
				if since++; since >= x.flipper.FlipRate().Vblanks() {
					since = 0
					if x.flipper.Flip(ctx, -1) {
						x.flips.Add(1)
					}
				}
			}
			x.target.VblankEnd()
			x.ticks.Add(1)
		}
	}
}
