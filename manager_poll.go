package queue

import (
	"context"
	"time"
)

// StartPolling starts the peer-change watcher. Idempotent
// — calling it again while already polling is a no-op.
func (m *Manager) StartPolling(interval time.Duration) {
	m.mu.Lock()
	if m.pollHandle != nil {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	h := Every(interval, m.pollOnce)

	m.mu.Lock()
	m.pollHandle = h
	m.mu.Unlock()
}

func (m *Manager) stopPolling() {
	m.mu.Lock()
	h := m.pollHandle
	m.pollHandle = nil
	m.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// pollOnce reads the active pointer and, if its version differs from
// ours, performs a remote-initiated switch: resolve the driver, load its
// config, install fresh delegates, and replay subscriptions — without
// re-migrating recurring jobs or re-persisting.
func (m *Manager) pollOnce() {
	ctx := context.Background()

	var ptr ActivePointer
	ok, err := m.config.Get(ctx, ActivePointerKey, ActivePointerSchemaVersion, &ptr)
	if err != nil {
		m.logError("poll: read active pointer failed", err)
		return
	}
	if !ok {
		return
	}

	m.mu.Lock()
	current := m.version
	m.mu.Unlock()
	if ptr.Version == current {
		return
	}

	driver, ok := m.registry.Get(ptr.ActiveDriverID)
	if !ok {
		m.logWarn("poll: unknown driver", "driverId", ptr.ActiveDriverID)
		return
	}

	raw := make(map[string]any)
	if _, err := m.config.Get(ctx, ptr.ActiveDriverID, driver.ConfigSchema().Version, &raw); err != nil {
		m.logError("poll: read driver config failed", err, "driverId", ptr.ActiveDriverID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.setActiveBackendLocked(ctx, ptr.ActiveDriverID, raw, false); err != nil {
		m.logError("poll: remote-initiated switch failed", err)
		return
	}
	m.version = ptr.Version
	m.logInfo("poll: converged to peer state", "driverId", ptr.ActiveDriverID, "version", ptr.Version)
}
