package memory

import "github.com/checkstack/queue"

// recurringDef is one recurring-job definition. Derived
// jobs carry the id "{jobID}:{firingTimestampMillis}" — recurringDef
// itself is never mutated by anything except ScheduleRecurring
// (upsert) and CancelRecurring (disable).
type recurringDef struct {
	jobID    string
	data     any
	priority int
	schedule queue.RecurringSchedule
	enabled  bool
}
