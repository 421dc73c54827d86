package authority

import "time"

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. Callbacks run on their own goroutine and must
// take the authority lock themselves.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
