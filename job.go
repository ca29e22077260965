package queue

import (
	"context"
	"time"
)

// Job is the view a Handler receives when it is invoked: an immutable
// id and payload, the priority it was enqueued with, the wall-clock
// time it was enqueued, and how many failed attempts have been recorded
// for it.
//
// Job carries no queue-name or consumer-group field: a single enqueue can
// be fanned out to many groups. The in-memory driver keeps one attempt
// count per enqueued job, shared by every group it is delivered to.
type Job struct {
	ID          string
	Data        any
	Priority    int
	EnqueuedAt  time.Time
	AvailableAt time.Time
	Attempts    int
}

// Handler processes one job delivery for one consumer group. A non-nil
// error is treated uniformly as failure — the scheduler does not inspect
// error contents, only whether one was returned.
type Handler func(ctx context.Context, job *Job) error

// EnqueueOptions configures a single Enqueue call.
type EnqueueOptions struct {
	// Priority orders dispatch within a consumer group; higher values are
	// dispatched first. Defaults to 0.
	Priority int

	// StartDelay postpones availability; the job is inserted into the
	// pending list immediately (so ordering is unaffected) but is not
	// eligible for dispatch until EnqueuedAt+StartDelay (scaled by the
	// queue's DelayMultiplier).
	StartDelay time.Duration

	// JobID, if set, is used as-is instead of generating a uuid. Reusing
	// an id already present among pending jobs returns that job's id
	// without inserting a duplicate — this is the hook
	// ScheduleRecurring relies on to avoid double-firing across races.
	JobID string
}

// ConsumerOptions configures a Consume registration.
type ConsumerOptions struct {
	// ConsumerGroup names the competing-consumers group this handler
	// joins. Required.
	ConsumerGroup string

	// MaxRetries is the number of retries (not attempts) allowed before a
	// job is terminally failed for this group. Defaults to 3 when left
	// at the zero value — callers who need a group that never retries
	// should register a handler that never returns an error instead,
	// since 0 is indistinguishable from "unset" in this struct.
	MaxRetries int
}

// RecurringOptions configures ScheduleRecurring. Exactly one of
// IntervalSeconds or CronPattern must be set.
type RecurringOptions struct {
	JobID           string
	IntervalSeconds int
	CronPattern     string
	StartDelay      time.Duration
	Priority        int
}

// RecurringSchedule is the stored, normalized form of a recurring
// definition's firing rule.
type RecurringSchedule struct {
	IntervalSeconds int
	CronPattern     string
}

// RecurringJobDetails describes one enabled recurring definition.
type RecurringJobDetails struct {
	JobID     string
	Data      any
	Priority  int
	Schedule  RecurringSchedule
	NextRunAt *time.Time
}

// Stats is a point-in-time snapshot of one queue's counters.
type Stats struct {
	Pending        int
	Processing     int
	Completed      int64
	Failed         int64
	ConsumerGroups int
}
