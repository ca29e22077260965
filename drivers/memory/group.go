package memory

import "github.com/checkstack/queue"

// registeredConsumer is one Consume() registration within a group.
type registeredConsumer struct {
	handler    queue.Handler
	maxRetries int
}

// consumerGroup is a set of competing consumers sharing dispatch of
// every job admitted to the queue, plus the bookkeeping needed to
// deliver each job to the group at most once per successful completion.
type consumerGroup struct {
	name      string
	consumers []registeredConsumer
	cursor    int
	processed map[string]struct{}
}

func newConsumerGroup(name string) *consumerGroup {
	return &consumerGroup{name: name, processed: make(map[string]struct{})}
}

// next returns the consumer the round-robin cursor currently points to
// and advances it. Callers must hold the owning queue's mutex.
func (g *consumerGroup) next() registeredConsumer {
	c := g.consumers[g.cursor%len(g.consumers)]
	g.cursor++
	return c
}
