package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	c := Load()
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "./smif_data", c.StoreDir)
	assert.Equal(t, 4, c.MaxParallel)
}

func TestLoad_HonoursEnvironmentOverrides(t *testing.T) {
	t.Setenv("SMIF_LOG_LEVEL", "debug")
	t.Setenv("SMIF_STORE_DIR", "/tmp/smif")
	t.Setenv("SMIF_MAX_PARALLEL", "8")

	c := Load()
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "/tmp/smif", c.StoreDir)
	assert.Equal(t, 8, c.MaxParallel)
}

func TestLoad_InvalidMaxParallelFallsBackToDefault(t *testing.T) {
	t.Setenv("SMIF_MAX_PARALLEL", "not-a-number")
	c := Load()
	assert.Equal(t, 4, c.MaxParallel)
}
