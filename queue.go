package queue

import "context"

// Queue is the contract every broker backend's per-name job channel must
// satisfy. A Manager never exposes one of these
// directly to callers — it always hands out a Proxy that forwards to the
// currently installed delegate of this shape.
type Queue interface {
	// Enqueue admits a job, returning its id (generated or caller-supplied).
	Enqueue(ctx context.Context, data any, opts EnqueueOptions) (string, error)

	// Consume registers handler under opts.ConsumerGroup. Re-registering
	// under the same group name appends another competing consumer; it
	// does not replace the group.
	Consume(handler Handler, opts ConsumerOptions) error

	// ScheduleRecurring upserts a recurring definition under opts.JobID,
	// replacing any existing one of the same id.
	ScheduleRecurring(data any, opts RecurringOptions) error

	// CancelRecurring disables a recurring definition and drops its
	// pending derived jobs. Canceling an unknown id is a no-op.
	CancelRecurring(jobID string) error

	// ListRecurringJobs returns the ids of all enabled recurring
	// definitions.
	ListRecurringJobs() []string

	// GetRecurringJobDetails returns the definition for jobID, if enabled.
	GetRecurringJobDetails(jobID string) (RecurringJobDetails, bool)

	// GetInFlightCount returns the number of handler invocations currently
	// running across every consumer group of this queue.
	GetInFlightCount() int

	// TestConnection verifies the backend is reachable.
	TestConnection(ctx context.Context) error

	// Stop drains in-flight handlers and releases resources. Idempotent.
	Stop(ctx context.Context) error

	// GetStats returns a point-in-time snapshot of this queue's counters.
	GetStats() Stats
}

// ConfigSchema describes a driver's config shape for ConfigService
// persistence: a schema version, used for the version-check
// ConfigService itself is responsible for.
type ConfigSchema struct {
	Version int
}

// Driver creates named Queue instances sharing one backend connection or
// configuration. Implementations must be safe to create
// many named queues concurrently.
type Driver interface {
	// ID is this driver's stable identifier, e.g. "memory".
	ID() string

	// Name is a short human-readable label.
	Name() string

	// Description is a one-line summary for admin surfaces.
	Description() string

	// ConfigSchema describes the persisted schema version for this
	// driver's config.
	ConfigSchema() ConfigSchema

	// DecodeConfig decodes and validates a raw config map (as read back
	// from ConfigService, or supplied to SetActiveBackend) into this
	// driver's canonical config value. The returned value is what gets
	// passed to CreateQueue.
	DecodeConfig(raw map[string]any) (any, error)

	// CreateQueue creates (or recreates) a named queue against cfg, which
	// is always a value previously returned by DecodeConfig.
	CreateQueue(name string, cfg any) (Queue, error)
}

// DriverMetadata is the read-only view of a registered Driver exposed to
// admin surfaces.
type DriverMetadata struct {
	ID          string
	Name        string
	Description string
}

// SwitchResult is returned by SetActiveBackend.
type SwitchResult struct {
	Success               bool
	MigratedRecurringJobs int
	Warnings              []string
}
