package gpu

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/logiface"
)

// presenterOptions holds configuration options for HeadlessPresenter
// creation.
type presenterOptions struct {
	logger *logiface.Logger[logiface.Event]
	delay  time.Duration
}

// PresenterOption configures a HeadlessPresenter, see NewHeadlessPresenter.
type PresenterOption interface {
	applyPresenter(*presenterOptions) error
}

// presenterOptionImpl implements PresenterOption.
type presenterOptionImpl struct {
	applyPresenterFunc func(*presenterOptions) error
}

func (o *presenterOptionImpl) applyPresenter(opts *presenterOptions) error {
	return o.applyPresenterFunc(opts)
}

// WithPresentDelay simulates the latency of acquiring and presenting a
// swapchain image. The delay must not be negative.
func WithPresentDelay(delay time.Duration) PresenterOption {
	return &presenterOptionImpl{func(opts *presenterOptions) error {
		if delay < 0 {
			return errors.Errorf(`negative present delay %s`, delay)
		}
		opts.delay = delay
		return nil
	}}
}

// WithPresenterLogger enables per-frame trace logging.
func WithPresenterLogger(logger *logiface.Logger[logiface.Event]) PresenterOption {
	return &presenterOptionImpl{func(opts *presenterOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolvePresenterOptions applies PresenterOption instances to
// presenterOptions.
func resolvePresenterOptions(opts []PresenterOption) (*presenterOptions, error) {
	cfg := &presenterOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPresenter(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
