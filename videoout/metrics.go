package videoout

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

const digestCompression = 100

type (
	// Metrics is a snapshot of the counters maintained by VideoOut, see
	// VideoOut.Metrics.
	Metrics struct {
		// Latency is the distribution of the time between SubmitFlip and
		// the completion of the flip.
		Latency LatencyMetrics

		// Flips is the number of completed flips.
		Flips uint64

		// PresentFailures is the number of completed flips for which the
		// presenter reported failure.
		PresentFailures uint64

		// Dropped is the number of queued flips discarded by Close.
		Dropped uint64

		// QueueFull is the number of SubmitFlip calls rejected with
		// ErrQueueFull.
		QueueFull uint64

		// Vblanks is the number of VblankBegin calls.
		Vblanks uint64
	}

	// LatencyMetrics summarises a latency distribution.
	LatencyMetrics struct {
		P50 time.Duration
		P90 time.Duration
		P99 time.Duration
		Max time.Duration
	}

	metrics struct {
		digest *tdigest.TDigest
		mu     sync.Mutex
		values Metrics
	}
)

func newMetrics() *metrics {
	return &metrics{digest: tdigest.NewWithCompression(digestCompression)}
}

func (x *metrics) recordFlip(latency time.Duration, presented bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.values.Flips++
	if !presented {
		x.values.PresentFailures++
	}
	x.digest.Add(float64(latency), 1)
	if latency > x.values.Latency.Max {
		x.values.Latency.Max = latency
	}
}

func (x *metrics) recordDropped(n int) {
	x.mu.Lock()
	x.values.Dropped += uint64(n)
	x.mu.Unlock()
}

func (x *metrics) recordQueueFull() {
	x.mu.Lock()
	x.values.QueueFull++
	x.mu.Unlock()
}

func (x *metrics) recordVblank() {
	x.mu.Lock()
	x.values.Vblanks++
	x.mu.Unlock()
}

func (x *metrics) snapshot() Metrics {
	x.mu.Lock()
	defer x.mu.Unlock()
	m := x.values
	if m.Flips != 0 {
		m.Latency.P50 = time.Duration(x.digest.Quantile(0.5))
		m.Latency.P90 = time.Duration(x.digest.Quantile(0.9))
		m.Latency.P99 = time.Duration(x.digest.Quantile(0.99))
	}
	return m
}

// tscDuration converts a difference in TSC ticks to a duration.
func tscDuration(ticks, frequency uint64) time.Duration {
	if frequency == 0 {
		return 0
	}
	seconds := ticks / frequency
	remainder := ticks % frequency
	return time.Duration(seconds)*time.Second + time.Duration(remainder*uint64(time.Second)/frequency)
}
