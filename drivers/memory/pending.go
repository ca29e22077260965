package memory

import "time"

// pendingJob is one admitted-but-not-yet-fully-delivered job. It stays
// in the queue's pending list for as long as any consumer group has not
// yet processed it — dispatch marks a group's processed-set, it never
// removes the entry itself; only the GC sweep does that.
type pendingJob struct {
	id          string
	data        any
	priority    int
	enqueuedAt  time.Time
	availableAt time.Time
	attempts    int
	seq         int64
}

// less reports whether a sorts strictly before b in the pending list:
// descending priority, then ascending sequence (enqueue order) among
// equal priorities. availableAt plays no part in ordering — it only
// gates dispatch eligibility.
func less(a, b *pendingJob) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

// insertSorted inserts j into pending, preserving the order less
// defines. Linear insertion is acceptable given maxQueueSize bounds the
// list length.
func insertSorted(pending []*pendingJob, j *pendingJob) []*pendingJob {
	idx := len(pending)
	for i, p := range pending {
		if less(j, p) {
			idx = i
			break
		}
	}
	pending = append(pending, nil)
	copy(pending[idx+1:], pending[idx:])
	pending[idx] = j
	return pending
}
