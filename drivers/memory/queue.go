package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/checkstack/queue"
)

// maxRetryBackoff bounds the exponential retry delay regardless of how
// many attempts have accumulated.
const maxRetryBackoff = 5 * time.Minute

// Queue is the in-memory reference driver's scheduler/dispatcher: a
// priority-ordered pending list, per-consumer-group processed tracking,
// a concurrency-bounding semaphore, and the retry and recurring-firing
// machinery built on top of them.
type Queue struct {
	name            string
	maxQueueSize    int
	delayMultiplier float64

	sem *semaphore.Weighted

	mu        sync.Mutex
	pending   []*pendingJob
	seq       int64
	groups    map[string]*consumerGroup
	recurring map[string]*recurringDef
	stopped   bool

	inFlight  int64
	completed int64
	failed    int64

	dispatchCh chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup // outstanding handler goroutines

	timersMu sync.Mutex
	timers   []*queue.Handle
}

func newQueue(name string, cfg Config) *Queue {
	q := &Queue{
		name:            name,
		maxQueueSize:    cfg.MaxQueueSize,
		delayMultiplier: cfg.DelayMultiplier,
		sem:             semaphore.NewWeighted(int64(cfg.Concurrency)),
		groups:          make(map[string]*consumerGroup),
		recurring:       make(map[string]*recurringDef),
		dispatchCh:      make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	go q.dispatchLoop()
	return q
}

func (q *Queue) scaleDelay(d time.Duration) time.Duration {
	if d <= 0 || q.delayMultiplier == 1 {
		return d
	}
	return time.Duration(float64(d) * q.delayMultiplier)
}

func (q *Queue) triggerDispatch() {
	select {
	case q.dispatchCh <- struct{}{}:
	default:
	}
}

// scheduleWake arranges for a dispatch sweep to run at least once after
// d has elapsed, tracking the timer so Stop can cancel it.
func (q *Queue) scheduleWake(d time.Duration) {
	if d <= 0 {
		q.triggerDispatch()
		return
	}
	h := queue.After(d, q.triggerDispatch)
	q.timersMu.Lock()
	q.timers = append(q.timers, h)
	q.timersMu.Unlock()
}

func (q *Queue) dispatchLoop() {
	for {
		select {
		case <-q.dispatchCh:
			q.sweep()
		case <-q.done:
			return
		}
	}
}

// Enqueue implements queue.Queue.Enqueue.
func (q *Queue) Enqueue(ctx context.Context, data any, opts queue.EnqueueOptions) (string, error) {
	availableAt := time.Now().Add(q.scaleDelay(opts.StartDelay))
	return q.enqueueAt(data, opts.JobID, opts.Priority, availableAt)
}

// enqueueAt is the common insertion path shared by Enqueue and the
// recurring-firing machinery, which computes its own absolute fire time
// rather than a relative, delayMultiplier-scaled startDelay.
func (q *Queue) enqueueAt(data any, id string, priority int, availableAt time.Time) (string, error) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return "", queue.ErrStopped
	}
	if len(q.pending) >= q.maxQueueSize {
		q.mu.Unlock()
		return "", queue.ErrQueueFull
	}
	if id == "" {
		id = uuid.NewString()
	} else {
		for _, p := range q.pending {
			if p.id == id {
				q.mu.Unlock()
				return id, nil
			}
		}
	}

	now := time.Now()
	q.seq++
	job := &pendingJob{
		id:          id,
		data:        data,
		priority:    priority,
		enqueuedAt:  now,
		availableAt: availableAt,
		seq:         q.seq,
	}
	q.pending = insertSorted(q.pending, job)
	q.mu.Unlock()

	if delay := availableAt.Sub(now); delay <= 0 {
		q.triggerDispatch()
	} else {
		q.scheduleWake(delay)
	}
	return id, nil
}

// Consume implements queue.Queue.Consume.
func (q *Queue) Consume(handler queue.Handler, opts queue.ConsumerOptions) error {
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return queue.ErrStopped
	}
	g, ok := q.groups[opts.ConsumerGroup]
	if !ok {
		g = newConsumerGroup(opts.ConsumerGroup)
		q.groups[opts.ConsumerGroup] = g
	}
	g.consumers = append(g.consumers, registeredConsumer{handler: handler, maxRetries: maxRetries})
	q.mu.Unlock()

	q.triggerDispatch()
	return nil
}

// sweep is one dispatch tick: for each group, find the
// first eligible pending job, mark it processed for that group, and
// hand it to the next consumer in round robin. Handler execution is
// launched asynchronously and is never awaited here.
func (q *Queue) sweep() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	now := time.Now()

	type dispatched struct {
		job      *pendingJob
		group    *consumerGroup
		consumer registeredConsumer
	}
	var toRun []dispatched

	for _, g := range q.groups {
		if len(g.consumers) == 0 {
			continue
		}
		for _, j := range q.pending {
			if _, done := g.processed[j.id]; done {
				continue
			}
			if j.availableAt.After(now) {
				continue
			}
			g.processed[j.id] = struct{}{}
			toRun = append(toRun, dispatched{job: j, group: g, consumer: g.next()})
			break
		}
	}

	q.gcLocked()
	q.wg.Add(len(toRun))
	q.mu.Unlock()

	for _, d := range toRun {
		go q.execute(d.job, d.group, d.consumer)
	}
}

// gcLocked removes every pending job every existing group has already
// processed, purging the corresponding entries from each group's
// processed set. Callers must hold q.mu. A job enqueued before any
// consumer group exists is removed immediately (vacuously "processed"
// by the empty set of groups) — late subscribers are never replayed.
func (q *Queue) gcLocked() {
	kept := q.pending[:0]
	for _, j := range q.pending {
		allDone := true
		for _, g := range q.groups {
			if _, done := g.processed[j.id]; !done {
				allDone = false
				break
			}
		}
		if allDone {
			for _, g := range q.groups {
				delete(g.processed, j.id)
			}
			continue
		}
		kept = append(kept, j)
	}
	q.pending = kept
}

// execute runs one handler invocation for one (job, group) pairing.
func (q *Queue) execute(job *pendingJob, group *consumerGroup, consumer registeredConsumer) {
	defer q.wg.Done()

	if err := q.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	atomic.AddInt64(&q.inFlight, 1)

	handlerJob := &queue.Job{
		ID:          job.id,
		Data:        job.data,
		Priority:    job.priority,
		EnqueuedAt:  job.enqueuedAt,
		AvailableAt: job.availableAt,
		Attempts:    job.attempts,
	}
	err := consumer.handler(context.Background(), handlerJob)

	atomic.AddInt64(&q.inFlight, -1)
	q.sem.Release(1)

	if err == nil {
		atomic.AddInt64(&q.completed, 1)
		q.handleRecurringCompletion(job)
	} else {
		q.handleFailure(job, group, consumer.maxRetries)
	}

	q.triggerDispatch()
}

// handleFailure applies retry-or-terminal-fail policy. On retry it clears
// this group's processed mark and pushes the job's availableAt out by the
// backoff, computed from the job's original enqueue time so that
// repeated failures land at enqueuedAt+2^attempts·1000·multiplier
// rather than compounding from the previous attempt. If the GC sweep has
// already removed the job from pending (every group had processed it),
// it is re-inserted with every other group marked as having processed
// it, so only this group receives the retry.
func (q *Queue) handleFailure(job *pendingJob, group *consumerGroup, maxRetries int) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	if job.attempts >= maxRetries {
		atomic.AddInt64(&q.failed, 1)
		q.mu.Unlock()
		return
	}

	job.attempts++
	delete(group.processed, job.id)

	inPending := false
	for _, p := range q.pending {
		if p == job {
			inPending = true
			break
		}
	}
	if !inPending {
		for _, g := range q.groups {
			if g != group {
				g.processed[job.id] = struct{}{}
			}
		}
		q.pending = insertSorted(q.pending, job)
	}

	backoff := q.scaleDelay(time.Duration(math.Pow(2, float64(job.attempts))*1000) * time.Millisecond)
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	target := job.enqueuedAt.Add(backoff)
	now := time.Now()
	if target.Before(now) {
		target = now
	}
	job.availableAt = target
	q.mu.Unlock()

	q.scheduleWake(target.Sub(now))
}

// handleRecurringCompletion implements the chained-firing scheme: a
// successful derived-job completion computes and enqueues the next
// firing for its parent definition, rather than an independent
// per-definition timer.
func (q *Queue) handleRecurringCompletion(job *pendingJob) {
	q.mu.Lock()
	var def *recurringDef
	for id, d := range q.recurring {
		if d.enabled && strings.HasPrefix(job.id, id+":") {
			def = d
			break
		}
	}
	q.mu.Unlock()
	if def == nil {
		return
	}

	var next time.Time
	if def.schedule.IntervalSeconds > 0 {
		next = time.Now().Add(time.Duration(def.schedule.IntervalSeconds) * time.Second)
	} else {
		var err error
		next, err = queue.NextCronFire(def.schedule.CronPattern, time.Now())
		if err != nil {
			return
		}
	}

	id := fmt.Sprintf("%s:%d", def.jobID, next.UnixMilli())
	_, _ = q.enqueueAt(def.data, id, def.priority, next)
}

// ScheduleRecurring implements queue.Queue.ScheduleRecurring.
func (q *Queue) ScheduleRecurring(data any, opts queue.RecurringOptions) error {
	hasInterval := opts.IntervalSeconds > 0
	hasCron := opts.CronPattern != ""
	if hasInterval == hasCron {
		return queue.ErrInvalidSchedule
	}
	if hasCron {
		if _, err := queue.NextCronFire(opts.CronPattern, time.Now()); err != nil {
			return fmt.Errorf("%w: %v", queue.ErrInvalidSchedule, err)
		}
	}

	q.mu.Lock()
	if _, exists := q.recurring[opts.JobID]; exists {
		q.dropDerivedLocked(opts.JobID)
	}
	q.recurring[opts.JobID] = &recurringDef{
		jobID:    opts.JobID,
		data:     data,
		priority: opts.Priority,
		schedule: queue.RecurringSchedule{IntervalSeconds: opts.IntervalSeconds, CronPattern: opts.CronPattern},
		enabled:  true,
	}
	q.mu.Unlock()

	availableAt := time.Now().Add(q.scaleDelay(opts.StartDelay))
	id := fmt.Sprintf("%s:%d", opts.JobID, time.Now().UnixMilli())
	_, err := q.enqueueAt(data, id, opts.Priority, availableAt)
	return err
}

// dropDerivedLocked removes every pending derived job of jobID and
// purges it from every group's processed set. Callers must hold q.mu.
func (q *Queue) dropDerivedLocked(jobID string) {
	prefix := jobID + ":"
	kept := q.pending[:0]
	for _, p := range q.pending {
		if strings.HasPrefix(p.id, prefix) {
			for _, g := range q.groups {
				delete(g.processed, p.id)
			}
			continue
		}
		kept = append(kept, p)
	}
	q.pending = kept
}

// CancelRecurring implements queue.Queue.CancelRecurring. Canceling an unknown id is a no-op.
func (q *Queue) CancelRecurring(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	def, ok := q.recurring[jobID]
	if !ok {
		return nil
	}
	def.enabled = false
	q.dropDerivedLocked(jobID)
	return nil
}

func (q *Queue) ListRecurringJobs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for id, d := range q.recurring {
		if d.enabled {
			out = append(out, id)
		}
	}
	return out
}

func (q *Queue) GetRecurringJobDetails(jobID string) (queue.RecurringJobDetails, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	def, ok := q.recurring[jobID]
	if !ok || !def.enabled {
		return queue.RecurringJobDetails{}, false
	}

	details := queue.RecurringJobDetails{
		JobID:    def.jobID,
		Data:     def.data,
		Priority: def.priority,
		Schedule: def.schedule,
	}
	prefix := jobID + ":"
	for _, p := range q.pending {
		if strings.HasPrefix(p.id, prefix) {
			at := p.availableAt
			details.NextRunAt = &at
			break
		}
	}
	return details, true
}

func (q *Queue) GetInFlightCount() int {
	return int(atomic.LoadInt64(&q.inFlight))
}

func (q *Queue) TestConnection(ctx context.Context) error {
	return nil
}

// Stop implements queue.Queue.Stop: stop accepting new
// dispatch, cancel every outstanding timer, and wait for in-flight
// handlers to finish.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	q.mu.Unlock()

	q.timersMu.Lock()
	for _, h := range q.timers {
		h.Cancel()
	}
	q.timers = nil
	q.timersMu.Unlock()

	close(q.done)
	q.wg.Wait()
	return nil
}

func (q *Queue) GetStats() queue.Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Stats{
		Pending:        len(q.pending),
		Processing:     int(atomic.LoadInt64(&q.inFlight)),
		Completed:      atomic.LoadInt64(&q.completed),
		Failed:         atomic.LoadInt64(&q.failed),
		ConsumerGroups: len(q.groups),
	}
}

var _ queue.Queue = (*Queue)(nil)
