package application

import "time"

// Timer is a cancellable deferred action. Stop reports whether the timer
// was cancelled before firing.
type Timer interface {
	Stop() bool
}

// Scheduler defers a function call. The engine schedules delayed escalation
// levels through this interface so tests can drive firing deterministically
// instead of waiting on the wall clock.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Timer
}

// TimerScheduler schedules on the runtime timer heap.
type TimerScheduler struct{}

// Schedule implements Scheduler via time.AfterFunc.
func (TimerScheduler) Schedule(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, fn)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
