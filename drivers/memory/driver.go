// Package memory is the reference Queue driver: everything lives in
// process memory, with no external dependency. It is the default active
// driver and the one a persistent driver's test suite should be
// cross-checked against.
package memory

import (
	"fmt"

	"github.com/checkstack/queue"
)

// configSchemaVersion is this driver's ConfigSchema.Version.
const configSchemaVersion = 1

// Config is this driver's decoded, validated configuration.
type Config struct {
	// Concurrency bounds the number of handler invocations running at
	// once across every consumer group of a queue created with this
	// config.
	Concurrency int `mapstructure:"concurrency" validate:"required,min=1"`

	// MaxQueueSize bounds the pending-list length; Enqueue past this
	// returns ErrQueueFull.
	MaxQueueSize int `mapstructure:"maxQueueSize" validate:"required,min=1"`

	// DelayMultiplier scales every computed wait (startDelay and retry
	// backoff) — intended for compressing wall-clock time in tests.
	// Defaults to 1 (real time) when omitted or zero.
	DelayMultiplier float64 `mapstructure:"delayMultiplier"`
}

// Driver creates named in-memory Queue instances sharing one Config.
type Driver struct{}

// NewDriver returns a ready Driver. It holds no state of its own; each
// CreateQueue call is independent.
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) ID() string          { return "memory" }
func (d *Driver) Name() string        { return "In-Memory" }
func (d *Driver) Description() string { return "Process-local queue backend with no external dependency" }

func (d *Driver) ConfigSchema() queue.ConfigSchema {
	return queue.ConfigSchema{Version: configSchemaVersion}
}

func (d *Driver) DecodeConfig(raw map[string]any) (any, error) {
	cfg := Config{DelayMultiplier: 1}
	if err := queue.DecodeAndValidate(raw, &cfg); err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	if cfg.DelayMultiplier == 0 {
		cfg.DelayMultiplier = 1
	}
	return cfg, nil
}

func (d *Driver) CreateQueue(name string, cfg any) (queue.Queue, error) {
	c, ok := cfg.(Config)
	if !ok {
		return nil, fmt.Errorf("memory: unexpected config type %T", cfg)
	}
	return newQueue(name, c), nil
}

var _ queue.Driver = (*Driver)(nil)
