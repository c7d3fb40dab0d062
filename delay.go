package recur

import "time"

// Delay is what a Listener returns to tell the driver what to do next: how
// long to wait before the next tick, or that the driver should stop. It
// exists because Go has no natural "distinguished null duration"; Delay
// makes the stop sentinel a value in its own right instead of overloading
// a magic duration.
type Delay struct {
	duration time.Duration
	halt     bool
}

// After schedules the next tick to begin d after this one finishes. A
// zero or negative d re-ticks immediately, without going through the
// scheduler.
func After(d time.Duration) Delay {
	return Delay{duration: d}
}

// Halt tells the driver to stop after this tick; no further tick will run
// until Start is called again.
func Halt() Delay {
	return Delay{halt: true}
}
