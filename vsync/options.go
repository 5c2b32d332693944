package vsync

import (
	"github.com/benbjohnson/clock"
	"github.com/joeycumines/logiface"
)

// driverOptions holds configuration options for Driver creation.
type driverOptions struct {
	clock   clock.Clock
	flipper Flipper
	logger  *logiface.Logger[logiface.Event]
}

// Option configures a Driver, see New.
type Option interface {
	applyOption(*driverOptions) error
}

// driverOptionImpl implements Option.
type driverOptionImpl struct {
	applyOptionFunc func(*driverOptions) error
}

func (o *driverOptionImpl) applyOption(opts *driverOptions) error {
	return o.applyOptionFunc(opts)
}

// WithClock overrides the clock, e.g. with clock.NewMock, for tests.
func WithClock(c clock.Clock) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.clock = c
		return nil
	}}
}

// WithFlipper makes the driver present flips, paced by the flip rate.
func WithFlipper(f Flipper) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.flipper = f
		return nil
	}}
}

// WithLogger configures the logger. Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveOptions applies Option instances to driverOptions.
func resolveOptions(opts []Option) (*driverOptions, error) {
	cfg := &driverOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	return cfg, nil
}
