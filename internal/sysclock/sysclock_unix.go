//go:build linux || darwin

package sysclock

import (
	"golang.org/x/sys/unix"
)

func rawNanos() uint64 {
	return clockNanos(unix.CLOCK_MONOTONIC_RAW)
}

func monotonicNanos() uint64 {
	return clockNanos(unix.CLOCK_MONOTONIC)
}

func clockNanos(id int32) uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(id, &ts); err != nil {
		// both clocks are mandatory on supported platforms
		panic(err)
	}
	return uint64(ts.Nano())
}
