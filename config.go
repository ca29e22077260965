package queue

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Logger is the structured logging interface consumed from the plugin
// host. Implement it to route queue logging into the host's own
// logger; with a nil Logger, the Manager falls back to a bare stdout
// print for warnings, errors and a fixed set of significant info events,
// and drops every other info message (see manager_logging.go).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// With returns a new Logger with the given fields attached.
	With(args ...interface{}) Logger
}

// ConfigService is the versioned configuration store consumed from the
// plugin host. Implementations apply their own schema
// validation and version-check, returning ok=false when a key is absent
// or a version mismatch cannot be migrated — the Manager never sees the
// difference between "absent" and "present but unreadable".
type ConfigService interface {
	// Get decodes the value stored under key (validated against
	// schemaVersion) into out, a pointer. ok is false if the key is
	// unset or the stored schema version could not be resolved.
	Get(ctx context.Context, key string, schemaVersion int, out any) (ok bool, err error)

	// Set persists value under key at schemaVersion.
	Set(ctx context.Context, key string, schemaVersion int, value any) error
}

const (
	// ActivePointerKey is the well-known ConfigService key holding the
	// active driver pointer.
	ActivePointerKey = "queue:active"

	// ActivePointerSchemaVersion is fixed at 1.
	ActivePointerSchemaVersion = 1

	// DefaultDriverID is adopted before any configuration has been loaded.
	DefaultDriverID = "memory"
)

// ActivePointer is the process-wide, persisted record coordinating
// backend selection across instances.
type ActivePointer struct {
	ActiveDriverID string `mapstructure:"activeDriverId"`
	Version        int    `mapstructure:"version"`
}

// DefaultDriverConfig is the default configuration adopted for the
// default driver before any configuration has been loaded.
func DefaultDriverConfig() map[string]any {
	return map[string]any{
		"concurrency":  10,
		"maxQueueSize": 10000,
	}
}

var validate = validator.New()

// DecodeAndValidate decodes raw into out (a pointer) via mapstructure,
// then validates the result's `validate:"..."` tags. This is the shared
// mechanism behind every Driver.DecodeConfig — the concrete realization
// of "validate against the driver's configSchema".
func DecodeAndValidate(raw map[string]any, out any) error {
	if err := mapstructure.Decode(raw, out); err != nil {
		return err
	}
	return validate.Struct(out)
}
