package common

import "time"

// Clock supplies the current time. Injected wherever expiry windows are evaluated.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
