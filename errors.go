package queue

import "errors"

// Sentinel errors surfaced across the queue contract. Wrapped forms carry
// additional context via fmt.Errorf("...: %w", ...); callers should match
// with errors.Is.
var (
	// ErrUnknownDriver is returned by SetActiveBackend when no driver is
	// registered under the requested id.
	ErrUnknownDriver = errors.New("queue: unknown driver")

	// ErrInvalidConfig is returned when a driver config fails to decode or
	// fails schema validation.
	ErrInvalidConfig = errors.New("queue: invalid driver config")

	// ErrProbeFailed is returned when a candidate backend fails its
	// connectivity probe during a backend switch.
	ErrProbeFailed = errors.New("queue: backend probe failed")

	// ErrQueueFull is returned by Enqueue when the queue has reached its
	// configured maxQueueSize.
	ErrQueueFull = errors.New("queue: queue is full")

	// ErrNotInitialized is returned by a Proxy when no delegate has been
	// installed yet.
	ErrNotInitialized = errors.New("queue: proxy not initialized")

	// ErrStopped is returned by a Proxy or a driver Queue once stopped.
	ErrStopped = errors.New("queue: stopped")

	// ErrInvalidSchedule is returned by ScheduleRecurring when neither or
	// both of IntervalSeconds/CronPattern are set, or the cron pattern
	// fails to parse.
	ErrInvalidSchedule = errors.New("queue: invalid recurring schedule")
)
