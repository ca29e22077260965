package queue

import "testing"

type fakeDriver struct {
	id, name, desc string
}

func (f *fakeDriver) ID() string                    { return f.id }
func (f *fakeDriver) Name() string                  { return f.name }
func (f *fakeDriver) Description() string           { return f.desc }
func (f *fakeDriver) ConfigSchema() ConfigSchema     { return ConfigSchema{Version: 1} }
func (f *fakeDriver) DecodeConfig(raw map[string]any) (any, error) { return raw, nil }
func (f *fakeDriver) CreateQueue(name string, cfg any) (Queue, error) { return nil, nil }

func TestDriverRegistry_RegisterAndGet(t *testing.T) {
	r := NewDriverRegistry()
	r.Register(&fakeDriver{id: "memory", name: "In-Memory"})

	d, ok := r.Get("memory")
	if !ok {
		t.Fatal("expected driver to be registered")
	}
	if d.Name() != "In-Memory" {
		t.Errorf("expected name In-Memory, got %s", d.Name())
	}

	if _, ok := r.Get("redis"); ok {
		t.Error("expected unregistered driver to be absent")
	}
}

func TestDriverRegistry_ListSortedByID(t *testing.T) {
	r := NewDriverRegistry()
	r.Register(&fakeDriver{id: "redis", name: "Redis"})
	r.Register(&fakeDriver{id: "memory", name: "In-Memory"})

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(list))
	}
	if list[0].ID != "memory" || list[1].ID != "redis" {
		t.Errorf("expected sorted [memory redis], got [%s %s]", list[0].ID, list[1].ID)
	}
}

func TestDriverRegistry_MustGetPanicsOnUnknown(t *testing.T) {
	r := NewDriverRegistry()
	defer func() {
		if recover() == nil {
			t.Error("expected MustGet to panic for an unknown driver")
		}
	}()
	r.MustGet("nope")
}
