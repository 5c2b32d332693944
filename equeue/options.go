package equeue

import (
	"github.com/joeycumines/logiface"
)

// queueOptions holds configuration options for Queue creation.
type queueOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// Option configures a Queue, see New.
type Option interface {
	applyOption(*queueOptions) error
}

// queueOptionImpl implements Option.
type queueOptionImpl struct {
	applyOptionFunc func(*queueOptions) error
}

func (o *queueOptionImpl) applyOption(opts *queueOptions) error {
	return o.applyOptionFunc(opts)
}

// WithLogger configures the logger used by the queue. Logging is disabled by
// default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveOptions applies Option instances to queueOptions.
func resolveOptions(opts []Option) (*queueOptions, error) {
	cfg := &queueOptions{}
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
