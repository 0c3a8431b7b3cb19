package clock

import "time"

// Clock abstracts the time source so lifecycle tests can pin timestamps.
// Params: none.
// Returns: current time on demand.
type Clock interface {
	Now() time.Time
}

// RealClock is the production time source.
// Params: none.
// Returns: system wall clock in UTC.
type RealClock struct{}

// Now reads the system clock.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
