package cache

import "time"

// clock lets tests pin the timestamps written next to the blob and the chart cache expiry
type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
