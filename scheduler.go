package queue

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// maxTimerSpan bounds a single time.Timer's duration. Go's runtime timer
// wheel handles multi-year durations fine; the chunking covers hosts
// whose timers have a maximum span.
const maxTimerSpan = 24 * time.Hour

// Handle cancels a scheduled callback. Cancel is safe to call more than
// once and safe to call concurrently with the callback firing.
type Handle struct {
	cancel func()
	once   sync.Once
}

// Cancel stops the callback from firing, if it hasn't already.
func (h *Handle) Cancel() {
	h.once.Do(h.cancel)
}

// After invokes fn once after d has elapsed, chunking the wait into spans
// of at most maxTimerSpan. Each wait also selects on the cancel signal,
// so an arbitrarily long delay (e.g. a cron schedule that only fires
// once a year) is canceled promptly.
// This is the mechanism behind a recurring definition's next firing and a
// delayed-availability job waking the dispatch loop early.
func After(d time.Duration, fn func()) *Handle {
	stop := make(chan struct{})
	h := &Handle{cancel: func() { close(stop) }}

	go func() {
		remaining := d
		for remaining > 0 {
			span := remaining
			if span > maxTimerSpan {
				span = maxTimerSpan
			}
			t := time.NewTimer(span)
			select {
			case <-t.C:
				remaining -= span
			case <-stop:
				t.Stop()
				return
			}
		}
		fn()
	}()

	return h
}

// Every invokes fn repeatedly, sleeping d between invocations, until
// canceled. Used for the Manager's peer-change polling loop.
func Every(d time.Duration, fn func()) *Handle {
	stop := make(chan struct{})
	h := &Handle{cancel: func() { close(stop) }}

	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-stop:
				return
			}
		}
	}()

	return h
}

// NextCronFire returns the next time pattern fires strictly after from,
// using standard 5-field cron syntax (minute hour day-of-month month
// day-of-week).
func NextCronFire(pattern string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(pattern)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}
