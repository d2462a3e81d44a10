package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, runtime.NumCPU(), cfg.Optimization.Workers)
	assert.Equal(t, "tree", cfg.Optimization.Reduction)
	assert.Equal(t, 1e-6, cfg.Optimization.GradientStep)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SSO_WORKERS", "3")
	t.Setenv("SSO_SEED", "42")
	t.Setenv("SSO_REDUCTION", "gather")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Optimization.Workers)
	assert.Equal(t, int64(42), cfg.Optimization.Seed)
	assert.Equal(t, "gather", cfg.Optimization.Reduction)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"negative workers", "SSO_WORKERS", "-2"},
		{"unknown reduction", "SSO_REDUCTION", "ring"},
		{"zero gradient step", "SSO_GRADIENT_STEP", "0"},
		{"unparsable seed", "SSO_SEED", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
