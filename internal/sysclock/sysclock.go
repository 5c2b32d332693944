// Package sysclock reads the host clocks backing the guest's timestamp
// counter (TSC) and process time.
//
// The TSC is emulated as a nanosecond counter (frequency 1GHz), sourced from
// the raw monotonic clock where available. Process time is the number of
// microseconds since the Clock was created.
package sysclock

// TscFrequency is the frequency, in Hz, of the values returned by ReadTsc.
const TscFrequency = 1_000_000_000

// Clock implements the guest clock, relative to its creation.
// Instances must be initialized using the New factory.
type Clock struct {
	start uint64
}

// New initializes a Clock, with process time starting at zero.
func New() *Clock {
	return &Clock{start: monotonicNanos()}
}

// ReadTsc returns the current value of the emulated timestamp counter.
func (x *Clock) ReadTsc() uint64 {
	return rawNanos()
}

// TscFrequency returns the frequency of ReadTsc, in Hz.
func (x *Clock) TscFrequency() uint64 {
	return TscFrequency
}

// ProcessTime returns the microseconds elapsed since New.
func (x *Clock) ProcessTime() uint64 {
	return (monotonicNanos() - x.start) / 1000
}
