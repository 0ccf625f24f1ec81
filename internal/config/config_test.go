package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, 50, cfg.Simulation.DefaultSpeed)
	assert.Equal(t, 1000, cfg.Simulation.DefaultTotal)
	assert.Equal(t, "two", cfg.Simulation.DefaultTail)
	assert.False(t, cfg.Simulation.BlockingEnabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SIM_SEED", "7")
	t.Setenv("SIM_DEFAULT_SPEED", "80")
	t.Setenv("SIM_DEFAULT_ITERATIONS", "250")
	t.Setenv("SIM_DEFAULT_TAIL", "right")
	t.Setenv("SIM_BLOCKING", "true")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, int64(7), cfg.Simulation.Seed)
	assert.Equal(t, 80, cfg.Simulation.DefaultSpeed)
	assert.Equal(t, 250, cfg.Simulation.DefaultTotal)
	assert.Equal(t, "right", cfg.Simulation.DefaultTail)
	assert.True(t, cfg.Simulation.BlockingEnabled)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"speed out of range", "SIM_DEFAULT_SPEED", "0"},
		{"iterations out of range", "SIM_DEFAULT_ITERATIONS", "50000"},
		{"unknown tail", "SIM_DEFAULT_TAIL", "middle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("SIM_DEFAULT_SPEED", "fast")
	t.Setenv("SIM_BLOCKING", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Simulation.DefaultSpeed)
	assert.False(t, cfg.Simulation.BlockingEnabled)
}
