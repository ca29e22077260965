package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDriverConfig(t *testing.T) {
	cfg := DefaultDriverConfig()
	assert.Equal(t, 10, cfg["concurrency"])
	assert.Equal(t, 10000, cfg["maxQueueSize"])
}

type decodedConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"required,min=1"`
	MaxQueue    int `mapstructure:"maxQueueSize" validate:"required,min=1"`
}

func TestDecodeAndValidate_Valid(t *testing.T) {
	var cfg decodedConfig
	err := DecodeAndValidate(map[string]any{"concurrency": 20, "maxQueueSize": 500}, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Concurrency)
	assert.Equal(t, 500, cfg.MaxQueue)
}

func TestDecodeAndValidate_FailsValidation(t *testing.T) {
	var cfg decodedConfig
	err := DecodeAndValidate(map[string]any{"concurrency": 0}, &cfg)
	assert.Error(t, err)
}

func TestActivePointer_RoundTripsThroughMapstructure(t *testing.T) {
	var ptr ActivePointer
	err := DecodeAndValidate(map[string]any{"activeDriverId": "redis", "version": 3}, &ptr)
	require.NoError(t, err)
	assert.Equal(t, "redis", ptr.ActiveDriverID)
	assert.Equal(t, 3, ptr.Version)
}
