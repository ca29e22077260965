package queue

import (
	"context"
	"sync"
)

type subscription struct {
	group   string
	handler Handler
	opts    ConsumerOptions
}

// Proxy is a stable Queue handle whose delegate can be swapped out from
// under callers. Callers obtain a Proxy once from
// a Manager and keep using it across backend switches; the Manager is
// the only thing that ever calls switchDelegate or Stop.
//
// Every forwarded call takes the RWMutex's read lock for its duration —
// this is the "counter" half of the operation-tracking mechanism, since
// an RLock held by N goroutines blocks a concurrent writer until all N
// release it. switchDelegate and Stop take the write lock, which is the
// "wait primitive" half: it only proceeds once every in-flight forwarded
// call has returned, and it holds out any new ones until the delegate is
// back in place.
type Proxy struct {
	name string

	mu       sync.RWMutex
	delegate Queue
	stopped  bool

	subMu    sync.Mutex
	subOrder []string
	subs     map[string]subscription
}

// NewProxy returns a Proxy with no delegate installed. Calls made before
// the first delegate is installed fail with ErrNotInitialized.
func NewProxy(name string) *Proxy {
	return &Proxy{name: name, subs: make(map[string]subscription)}
}

// Name returns this Proxy's stable identity.
func (p *Proxy) Name() string { return p.name }

// install sets the initial delegate. Used by the Manager the first time
// a Proxy is created, before any switch has occurred — there is nothing
// to await quiescence on yet, and no previous delegate to stop.
func (p *Proxy) install(d Queue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delegate = d
	p.stopped = false
}

// switchDelegate implements the delegate-swap sequence: wait for
// tracked operations to settle (the write lock below does this), install
// newQueue and replay every stored subscription in insertion order while
// still holding the write lock, so no new operation reaches newQueue
// before its subscriptions are in place; then release the lock and stop
// the previous delegate.
func (p *Proxy) switchDelegate(newQueue Queue) error {
	p.mu.Lock()
	prev := p.delegate
	p.delegate = newQueue
	p.stopped = false

	p.subMu.Lock()
	ordered := make([]subscription, 0, len(p.subOrder))
	for _, g := range p.subOrder {
		ordered = append(ordered, p.subs[g])
	}
	p.subMu.Unlock()

	var replayErr error
	for _, s := range ordered {
		if err := newQueue.Consume(s.handler, s.opts); err != nil {
			replayErr = err
			break
		}
	}
	p.mu.Unlock()

	if prev != nil {
		_ = prev.Stop(context.Background())
	}
	return replayErr
}

// current returns the installed delegate without holding any lock past
// the call — safe only for tests and introspection that don't forward
// an operation to the returned Queue. Every forwarding method below
// holds mu.RLock() for the full duration of its delegate call instead,
// so a concurrent switchDelegate/Stop (which takes the write lock)
// cannot stop or replace the delegate mid-call.
func (p *Proxy) current() (Queue, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return nil, ErrStopped
	}
	if p.delegate == nil {
		return nil, ErrNotInitialized
	}
	return p.delegate, nil
}

func (p *Proxy) Enqueue(ctx context.Context, data any, opts EnqueueOptions) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return "", ErrStopped
	}
	if p.delegate == nil {
		return "", ErrNotInitialized
	}
	return p.delegate.Enqueue(ctx, data, opts)
}

// Consume stores the subscription under opts.ConsumerGroup (last
// registration per group wins, but its position in the replay order is
// fixed at first registration) and, if a delegate is currently
// installed, forwards the registration immediately.
func (p *Proxy) Consume(handler Handler, opts ConsumerOptions) error {
	p.subMu.Lock()
	if _, exists := p.subs[opts.ConsumerGroup]; !exists {
		p.subOrder = append(p.subOrder, opts.ConsumerGroup)
	}
	p.subs[opts.ConsumerGroup] = subscription{group: opts.ConsumerGroup, handler: handler, opts: opts}
	p.subMu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	if p.delegate == nil {
		return nil
	}
	return p.delegate.Consume(handler, opts)
}

func (p *Proxy) ScheduleRecurring(data any, opts RecurringOptions) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	if p.delegate == nil {
		return ErrNotInitialized
	}
	return p.delegate.ScheduleRecurring(data, opts)
}

func (p *Proxy) CancelRecurring(jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	if p.delegate == nil {
		return ErrNotInitialized
	}
	return p.delegate.CancelRecurring(jobID)
}

func (p *Proxy) ListRecurringJobs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || p.delegate == nil {
		return nil
	}
	return p.delegate.ListRecurringJobs()
}

func (p *Proxy) GetRecurringJobDetails(jobID string) (RecurringJobDetails, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || p.delegate == nil {
		return RecurringJobDetails{}, false
	}
	return p.delegate.GetRecurringJobDetails(jobID)
}

func (p *Proxy) GetInFlightCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || p.delegate == nil {
		return 0
	}
	return p.delegate.GetInFlightCount()
}

func (p *Proxy) TestConnection(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	if p.delegate == nil {
		return ErrNotInitialized
	}
	return p.delegate.TestConnection(ctx)
}

// Stop marks the Proxy stopped, drops its current delegate and stops
// it. Calls fail with ErrStopped until a later switchDelegate installs a
// new delegate. Idempotent.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	d := p.delegate
	p.stopped = true
	p.delegate = nil
	p.mu.Unlock()

	if d == nil {
		return nil
	}
	return d.Stop(ctx)
}

func (p *Proxy) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || p.delegate == nil {
		return Stats{}
	}
	return p.delegate.GetStats()
}

var _ Queue = (*Proxy)(nil)
