package queue

import (
	"testing"
	"time"
)

func TestEnqueueOptions_Defaults(t *testing.T) {
	var opts EnqueueOptions
	if opts.Priority != 0 {
		t.Errorf("expected zero-value priority 0, got %d", opts.Priority)
	}
	if opts.StartDelay != 0 {
		t.Errorf("expected zero-value StartDelay 0, got %v", opts.StartDelay)
	}
}

func TestConsumerOptions_ZeroMaxRetriesMeansUnset(t *testing.T) {
	// MaxRetries==0 is indistinguishable from "unset" at this type's
	// level; the driver is responsible for substituting its default.
	opts := ConsumerOptions{ConsumerGroup: "workers"}
	if opts.MaxRetries != 0 {
		t.Errorf("expected zero MaxRetries, got %d", opts.MaxRetries)
	}
}

func TestRecurringJobDetails_NextRunAtOptional(t *testing.T) {
	d := RecurringJobDetails{JobID: "r1"}
	if d.NextRunAt != nil {
		t.Error("expected NextRunAt to be nil when not set")
	}

	now := time.Now()
	d.NextRunAt = &now
	if d.NextRunAt == nil || !d.NextRunAt.Equal(now) {
		t.Error("expected NextRunAt to round-trip")
	}
}

func TestJob_CarriesNoGroupOrQueueName(t *testing.T) {
	j := Job{ID: "abc", Data: 42, Priority: 5}
	if j.Data != 42 {
		t.Errorf("expected Data 42, got %v", j.Data)
	}
}
