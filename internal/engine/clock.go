package engine

import "time"

// Clock supplies wall time for deadlines.
//
// Deadlines are absolute UTC instants, so unlike an ordering clock this one
// must track real time. Tests substitute a clock they can advance.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
