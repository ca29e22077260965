package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

// fakeConfigService is an in-memory ConfigService test double, keyed
// exactly like a real implementation would be: (key, schemaVersion).
type fakeConfigService struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeConfigService() *fakeConfigService {
	return &fakeConfigService{store: make(map[string][]byte)}
}

func (f *fakeConfigService) storeKey(key string, version int) string {
	return fmt.Sprintf("%s@%d", key, version)
}

func (f *fakeConfigService) Get(ctx context.Context, key string, schemaVersion int, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.store[f.storeKey(key, schemaVersion)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeConfigService) Set(ctx context.Context, key string, schemaVersion int, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[f.storeKey(key, schemaVersion)] = raw
	return nil
}

// managerTestDriver is a minimal in-process Driver used only to exercise
// Manager wiring; it does not need any of the real retry/priority semantics
// the memory driver implements.
type managerTestDriver struct{}

func (managerTestDriver) ID() string          { return "memory" }
func (managerTestDriver) Name() string        { return "Test Memory" }
func (managerTestDriver) Description() string { return "fake driver for manager tests" }
func (managerTestDriver) ConfigSchema() ConfigSchema {
	return ConfigSchema{Version: 1}
}
func (managerTestDriver) DecodeConfig(raw map[string]any) (any, error) { return raw, nil }
func (managerTestDriver) CreateQueue(name string, cfg any) (Queue, error) {
	return newFakeQueue(), nil
}

var _ Driver = managerTestDriver{}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	reg := NewDriverRegistry()
	reg.Register(managerTestDriver{})
	return NewManager(reg, newFakeConfigService(), nil)
}

func TestManager_GetQueueUsesDefaultDriverBeforeConfigLoaded(t *testing.T) {
	m := newTestManager(t)

	p, err := m.GetQueue("orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.GetInFlightCount() != 0 {
		t.Error("expected a freshly created queue to have zero in-flight jobs")
	}

	// A second call for the same name must return the same Proxy.
	p2, err := m.GetQueue("orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != p2 {
		t.Error("expected GetQueue to return the same Proxy for a repeated name")
	}
}

func TestManager_SetActiveBackendSucceedsAndPersists(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.GetQueue("orders"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := m.SetActiveBackend(context.Background(), "memory", map[string]any{
		"concurrency":  20,
		"maxQueueSize": 5000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected Success=true")
	}

	_, _, version := m.ActiveDriver()
	if version != 1 {
		t.Errorf("expected version to bump to 1, got %d", version)
	}

	var ptr ActivePointer
	ok, err := m.config.Get(context.Background(), ActivePointerKey, ActivePointerSchemaVersion, &ptr)
	if err != nil || !ok || ptr.ActiveDriverID != "memory" || ptr.Version != 1 {
		t.Errorf("expected active pointer persisted as memory@1, got %+v (ok=%v, err=%v)", ptr, ok, err)
	}
}

func TestManager_SetActiveBackendUnknownDriver(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.SetActiveBackend(context.Background(), "postgres", nil); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestManager_SwitchPreservesSubscriptions(t *testing.T) {
	m := newTestManager(t)
	p, err := m.GetQueue("orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.Consume(noopHandler, ConsumerOptions{ConsumerGroup: "workers"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.SetActiveBackend(context.Background(), "memory", map[string]any{
		"concurrency": 10, "maxQueueSize": 100,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	delegate, err := p.current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fq, ok := delegate.(*fakeQueue)
	if !ok {
		t.Fatalf("expected delegate to be *fakeQueue, got %T", delegate)
	}
	if fq.subscriptions["workers"] != 1 {
		t.Error("expected subscription to have been replayed onto the post-switch delegate")
	}
}

func TestManager_ListAllRecurringJobsAggregatesAcrossQueues(t *testing.T) {
	m := newTestManager(t)
	p1, err := m.GetQueue("orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := m.GetQueue("emails")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p1.ScheduleRecurring("x", RecurringOptions{JobID: "daily-report"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p2.ScheduleRecurring("y", RecurringOptions{JobID: "weekly-digest"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := m.ListAllRecurringJobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 recurring jobs across queues, got %d: %v", len(jobs), jobs)
	}
}

func TestManager_ShutdownStopsAllProxies(t *testing.T) {
	m := newTestManager(t)
	p, err := m.GetQueue("orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Enqueue(context.Background(), "x", EnqueueOptions{}); err != ErrStopped {
		t.Errorf("expected ErrStopped after Shutdown, got %v", err)
	}
}

func TestManager_PollOnceConvergesToPeerState(t *testing.T) {
	cfg := newFakeConfigService()
	reg := NewDriverRegistry()
	reg.Register(managerTestDriver{})
	m := NewManager(reg, cfg, nil)

	if _, err := m.GetQueue("orders"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate a peer writing a new active pointer + driver config directly.
	if err := cfg.Set(context.Background(), ActivePointerKey, ActivePointerSchemaVersion, ActivePointer{
		ActiveDriverID: "memory",
		Version:        7,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Set(context.Background(), "memory", 1, map[string]any{
		"concurrency": 5, "maxQueueSize": 50,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.pollOnce()

	_, _, version := m.ActiveDriver()
	if version != 7 {
		t.Errorf("expected manager to converge to peer version 7, got %d", version)
	}
}
