package hostio

import (
	"golang.org/x/sys/unix"
)

// MonotonicClock reads CLOCK_MONOTONIC. The values wrap around like a 32 bit microcontroller timer.
type MonotonicClock struct{}

func (MonotonicClock) nanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is always supported on Linux
		panic(err)
	}
	return ts.Nano()
}

func (c MonotonicClock) NowMicros() uint32 {
	return uint32(c.nanos() / 1000)
}

func (c MonotonicClock) NowMillis() uint32 {
	return uint32(c.nanos() / 1000000)
}
