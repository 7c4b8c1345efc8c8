package vclock

import "time"

// Real returns a Scheduler backed by the standard time package. Actions run
// on their own goroutine, as with time.AfterFunc.
func Real() Scheduler { return realScheduler{} }

type realScheduler struct{}

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) ScheduleAfter(delay time.Duration, action func()) *Handle {
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, action)
	return &Handle{
		deadline: time.Now().Add(delay),
		cancel:   timer.Stop,
	}
}
