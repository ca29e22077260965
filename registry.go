package queue

import (
	"fmt"
	"sort"
	"sync"
)

// DriverRegistry holds the set of Driver implementations a Manager can
// switch between. Unlike the plugin host's own generic
// plugin registry (out of scope for this repo), this registry is scoped
// to job-queue backends only and is owned by one Manager instance.
type DriverRegistry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewDriverRegistry returns an empty registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[string]Driver)}
}

// Register adds or replaces the driver under its own ID().
func (r *DriverRegistry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.ID()] = d
}

// Get returns the driver registered under id, if any.
func (r *DriverRegistry) Get(id string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	return d, ok
}

// MustGet returns the driver registered under id, panicking if absent.
// Intended for wiring code at startup, not request-path use.
func (r *DriverRegistry) MustGet(id string) Driver {
	d, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("queue: driver %q not registered", id))
	}
	return d
}

// List returns metadata for every registered driver, sorted by ID.
func (r *DriverRegistry) List() []DriverMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DriverMetadata, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, DriverMetadata{
			ID:          d.ID(),
			Name:        d.Name(),
			Description: d.Description(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
