package kernel

import (
	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/internal/handle"
	"github.com/joeycumines/logiface"
)

// kernelOptions holds configuration options for Kernel creation.
type kernelOptions struct {
	logger    *logiface.Logger[logiface.Event]
	maxQueues int
}

// Option configures a Kernel, see New.
type Option interface {
	applyOption(*kernelOptions) error
}

// kernelOptionImpl implements Option.
type kernelOptionImpl struct {
	applyOptionFunc func(*kernelOptions) error
}

func (o *kernelOptionImpl) applyOption(opts *kernelOptions) error {
	return o.applyOptionFunc(opts)
}

// WithLogger configures the logger, which is also used by the queues.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxQueues configures the maximum number of event queues, which must
// be in the range [1, handle.MaxCapacity]. Defaults to DefaultMaxQueues.
func WithMaxQueues(n int) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if n < 1 || n > handle.MaxCapacity {
			return errors.Errorf(`kernel: invalid max queues %d`, n)
		}
		opts.maxQueues = n
		return nil
	}}
}

// resolveOptions applies Option instances to kernelOptions.
func resolveOptions(opts []Option) (*kernelOptions, error) {
	cfg := &kernelOptions{
		maxQueues: DefaultMaxQueues,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
