package videoout

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// warningCategory is the catrate category of rate limited warnings.
type warningCategory struct {
	what   string
	handle Handle
}

// newWarningLimiter returns nil (no limit) for empty rates.
func newWarningLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			limiter = nil
			err = errors.Wrapf(ErrInvalidValue, `warning rates: %s`, fmt.Sprint(r))
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// warning returns a builder for a rate limited warning, which will be nil
// (a no-op) if logging is disabled, or the category is over its limit.
func (x *VideoOut) warning(what string, h Handle) *logiface.Builder[logiface.Event] {
	b := x.logger.Warning()
	if !b.Enabled() {
		return nil
	}
	if _, ok := x.warnings.Allow(warningCategory{what: what, handle: h}); !ok {
		b.Release()
		return nil
	}
	return b.Int64(`handle`, int64(h))
}
