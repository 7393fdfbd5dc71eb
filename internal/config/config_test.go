package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 4096, cfg.Optimization.MaxAcquisitionCandidates)
	assert.Equal(t, optimization.DefaultRetryPolicy(), cfg.RetryPolicy())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("OPT_WORKER_COUNT", "8")
	t.Setenv("OPT_MAX_RETRIES", "1")
	t.Setenv("OPT_INITIAL_BACKOFF", "10ms")
	t.Setenv("OPT_MAX_DURATION", "5m")
	t.Setenv("OPT_RANDOM_SEED", "42")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_DSN", ":memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)

	run := cfg.RunConfig()
	assert.Equal(t, 8, run.Workers)
	assert.Equal(t, 5*time.Minute, run.MaxDuration)
	assert.Equal(t, int64(42), run.RandomSeed)
	assert.Equal(t, 1, run.Retry.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, run.Retry.InitialBackoff)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown driver", "STORAGE_DRIVER", "postgres"},
		{"no workers", "OPT_WORKER_COUNT", "0"},
		{"negative retries", "OPT_MAX_RETRIES", "-1"},
		{"bad duration", "OPT_MAX_DURATION", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
