package videoout

import (
	"time"

	"github.com/joeycumines/logiface"
)

// defaultWarningRates limits each category of warning (e.g. a full flip
// queue, for a given output) to a handful per minute.
var defaultWarningRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

// options holds configuration options for VideoOut creation.
type options struct {
	logger       *logiface.Logger[logiface.Event]
	warningRates map[time.Duration]int
}

// Option configures a VideoOut instance.
type Option interface {
	applyOption(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyOptionFunc func(*options) error
}

func (o *optionImpl) applyOption(opts *options) error {
	return o.applyOptionFunc(opts)
}

// WithLogger configures the logger, which is passed to any queues created
// by this package. Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithWarningRates configures how often warnings that may occur on hot
// paths are logged, per category, see catrate.NewLimiter. An empty map
// disables rate limiting. The default allows one per second, and ten per
// minute.
func WithWarningRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *options) error {
		opts.warningRates = rates
		return nil
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		warningRates: defaultWarningRates,
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
