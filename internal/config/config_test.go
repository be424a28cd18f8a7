package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")

	want := RuntimeConfig{
		Symbols:             []string{"AAPL", "MSFT"},
		APIKey:              "demo-key",
		UpdateIntervalMs:    25,
		MinUpdateIntervalMs: 12,
	}
	require.NoError(t, SaveRuntimeConfig(path, want))

	got, err := Load[RuntimeConfig](path)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load[RuntimeConfig](filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultRuntimeConfig_UsesVendorCadence(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	assert.NotEmpty(t, cfg.Symbols)
	assert.Equal(t, 12, cfg.UpdateIntervalMs)
	assert.Equal(t, 12, cfg.MinUpdateIntervalMs)
}
