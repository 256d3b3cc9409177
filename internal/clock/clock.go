package clock

import "time"

// Clock supplies the current time so that services can be driven by a
// fixed clock in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
