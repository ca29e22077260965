package queue

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// probeQueueName is the throwaway queue created during a backend switch
// solely to exercise TestConnection.
const probeQueueName = "__connection_test__"

// Manager owns backend selection, Proxy lifecycle, and cross-instance
// config coordination. All switch-protocol state mutation
// is serialized through mu — the protocol is explicitly single-threaded
// within one Manager.
type Manager struct {
	registry *DriverRegistry
	config   ConfigService
	logger   Logger

	mu              sync.Mutex
	activeDriverID  string
	activeConfig    map[string]any
	version         int
	proxies         map[string]*Proxy
	pollHandle      *Handle

	metricQueueDepth   metric.Int64ObservableGauge
	metricJobsInFlight metric.Int64ObservableGauge
	metricCompleted    metric.Int64ObservableCounter
	metricFailed       metric.Int64ObservableCounter
}

// NewManager wires a Manager against a driver registry and the host's
// config store and logger. The memory driver is assumed active
// until loadConfiguration overrides it.
func NewManager(registry *DriverRegistry, config ConfigService, logger Logger) *Manager {
	return &Manager{
		registry:       registry,
		config:         config,
		logger:         logger,
		activeDriverID: DefaultDriverID,
		activeConfig:   DefaultDriverConfig(),
		proxies:        make(map[string]*Proxy),
	}
}

// loadConfiguration reads the active pointer and, if present, resolves
// and adopts the referenced driver and its config. Failure at any step
// is logged and the current (default) state is retained — this never
// surfaces an error to the caller.
func (m *Manager) loadConfiguration(ctx context.Context) {
	var ptr ActivePointer
	ok, err := m.config.Get(ctx, ActivePointerKey, ActivePointerSchemaVersion, &ptr)
	if err != nil {
		m.logError("load active pointer failed", err)
		return
	}
	if !ok {
		return
	}

	driver, ok := m.registry.Get(ptr.ActiveDriverID)
	if !ok {
		m.logWarn("load configuration: unknown driver", "driverId", ptr.ActiveDriverID)
		return
	}

	raw := make(map[string]any)
	if _, err := m.config.Get(ctx, ptr.ActiveDriverID, driver.ConfigSchema().Version, &raw); err != nil {
		m.logError("load driver config failed", err, "driverId", ptr.ActiveDriverID)
		return
	}
	cfg, err := driver.DecodeConfig(raw)
	if err != nil {
		m.logError("decode driver config failed", err, "driverId", ptr.ActiveDriverID)
		return
	}

	m.mu.Lock()
	m.activeDriverID = ptr.ActiveDriverID
	m.activeConfig = raw
	m.version = ptr.Version
	m.mu.Unlock()

	_ = cfg // validated; cached config is re-decoded per-queue at creation time
	m.logInfo("configuration loaded", "driverId", ptr.ActiveDriverID, "version", ptr.Version)
}

// GetQueue returns the Proxy for name, creating it if absent. A freshly
// created Proxy is given a live delegate immediately, since a default
// driver is always active even before the first loadConfiguration call.
func (m *Manager) GetQueue(name string) (*Proxy, error) {
	m.mu.Lock()
	if p, ok := m.proxies[name]; ok {
		m.mu.Unlock()
		return p, nil
	}

	driverID := m.activeDriverID
	raw := m.activeConfig
	m.mu.Unlock()

	driver, ok := m.registry.Get(driverID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driverID)
	}
	cfg, err := driver.DecodeConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	q, err := driver.CreateQueue(name, cfg)
	if err != nil {
		return nil, err
	}

	p := NewProxy(name)
	p.install(q)

	m.mu.Lock()
	if existing, ok := m.proxies[name]; ok {
		m.mu.Unlock()
		_ = q.Stop(context.Background())
		return existing, nil
	}
	m.proxies[name] = p
	m.mu.Unlock()

	return p, nil
}

// SetActiveBackend runs the ordered backend-switch protocol.
func (m *Manager) SetActiveBackend(ctx context.Context, driverID string, rawConfig map[string]any) (SwitchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setActiveBackendLocked(ctx, driverID, rawConfig, true)
}

func (m *Manager) setActiveBackendLocked(ctx context.Context, driverID string, rawConfig map[string]any, persist bool) (SwitchResult, error) {
	// 1. Resolve newDriver.
	newDriver, ok := m.registry.Get(driverID)
	if !ok {
		return SwitchResult{}, fmt.Errorf("%w: %s", ErrUnknownDriver, driverID)
	}

	// 2. Validate config.
	cfg, err := newDriver.DecodeConfig(rawConfig)
	if err != nil {
		return SwitchResult{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// 3. Probe.
	probeQueue, err := newDriver.CreateQueue(probeQueueName, cfg)
	if err != nil {
		return SwitchResult{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	if err := probeQueue.TestConnection(ctx); err != nil {
		_ = probeQueue.Stop(ctx)
		return SwitchResult{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	_ = probeQueue.Stop(ctx)

	// 4. Snapshot recurring-job catalog BEFORE teardown.
	type snapshot struct {
		proxy   *Proxy
		details RecurringJobDetails
	}
	var snapshots []snapshot
	for _, p := range m.proxies {
		for _, id := range p.ListRecurringJobs() {
			if d, ok := p.GetRecurringJobDetails(id); ok {
				snapshots = append(snapshots, snapshot{proxy: p, details: d})
			}
		}
	}

	// 5. Record warning: current in-flight count.
	var warnings []string
	totalInFlight := 0
	for _, p := range m.proxies {
		totalInFlight += p.GetInFlightCount()
	}
	if totalInFlight > 0 {
		warnings = append(warnings, fmt.Sprintf("%d in-flight job(s) may be disrupted by this switch", totalInFlight))
	}

	// 6. Stop every existing delegate (best-effort).
	for name, p := range m.proxies {
		if err := p.Stop(ctx); err != nil {
			m.logWarn("stop delegate during switch failed", "queue", name, "error", err.Error())
		}
	}

	// 7. Adopt new (driverId, config) and bump version.
	m.activeDriverID = driverID
	m.activeConfig = rawConfig
	m.version++

	// 8. Install a fresh delegate per Proxy.
	for name, p := range m.proxies {
		q, err := newDriver.CreateQueue(name, cfg)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("queue %q: create failed: %v", name, err))
			continue
		}
		if err := p.switchDelegate(q); err != nil {
			warnings = append(warnings, fmt.Sprintf("queue %q: subscription replay failed: %v", name, err))
		}
	}

	// 9. Recurring migration. Step 8 always installs a brand-new delegate
	// regardless of whether the driver identity changed, so the old
	// delegate's recurring state is always lost and must always be
	// replayed for a locally-initiated switch. Peer-convergence
	// (persist=false) skips this: the initiating instance already
	// migrated these jobs, and re-migrating here would double-schedule.
	migrated := 0
	if persist {
		for _, snap := range snapshots {
			opts := RecurringOptions{
				JobID:      snap.details.JobID,
				Priority:   snap.details.Priority,
				CronPattern: snap.details.Schedule.CronPattern,
				IntervalSeconds: snap.details.Schedule.IntervalSeconds,
			}
			if err := snap.proxy.ScheduleRecurring(snap.details.Data, opts); err != nil {
				warnings = append(warnings, fmt.Sprintf("recurring job %q: migration failed: %v", snap.details.JobID, err))
				continue
			}
			migrated++
		}
	}

	// 10. Persist new config, then new pointer.
	if persist {
		if err := m.config.Set(ctx, driverID, newDriver.ConfigSchema().Version, rawConfig); err != nil {
			m.logError("persist driver config failed", err)
		}
		ptr := ActivePointer{ActiveDriverID: driverID, Version: m.version}
		if err := m.config.Set(ctx, ActivePointerKey, ActivePointerSchemaVersion, ptr); err != nil {
			m.logError("persist active pointer failed", err)
		}
	}

	m.logInfo("backend switch succeeded", "driverId", driverID, "version", m.version, "migratedRecurringJobs", migrated)
	return SwitchResult{Success: true, MigratedRecurringJobs: migrated, Warnings: warnings}, nil
}

// ListAllRecurringJobs aggregates enabled recurring-job ids across every
// Proxy's current delegate.
func (m *Manager) ListAllRecurringJobs() []string {
	m.mu.Lock()
	proxies := make([]*Proxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		proxies = append(proxies, p)
	}
	m.mu.Unlock()

	var out []string
	for _, p := range proxies {
		out = append(out, p.ListRecurringJobs()...)
	}
	return out
}

// GetInFlightJobCount aggregates in-flight handler counts across every
// Proxy's current delegate.
func (m *Manager) GetInFlightJobCount() int {
	m.mu.Lock()
	proxies := make([]*Proxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		proxies = append(proxies, p)
	}
	m.mu.Unlock()

	total := 0
	for _, p := range proxies {
		total += p.GetInFlightCount()
	}
	return total
}

// ListDrivers returns metadata for every registered driver, for an
// admin surface.
func (m *Manager) ListDrivers() []DriverMetadata {
	return m.registry.List()
}

// ActiveDriver returns the currently active driver id, config, and
// version.
func (m *Manager) ActiveDriver() (driverID string, config map[string]any, version int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeDriverID, m.activeConfig, m.version
}

// Shutdown stops the peer-change poller and every Proxy.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopPolling()

	m.mu.Lock()
	proxies := make([]*Proxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		proxies = append(proxies, p)
	}
	m.mu.Unlock()

	var firstErr error
	for _, p := range proxies {
		if err := p.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
