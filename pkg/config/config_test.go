package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRegistryConfigDefaults(t *testing.T) {
	cfg, err := LoadRegistryConfig()
	require.NoError(t, err)
	require.Equal(t, 600, cfg.TTLSeconds)
	require.Equal(t, EvictionLRU, cfg.EvictionPolicy)
	require.Equal(t, 600*time.Second, cfg.TTL())
}

func TestLoadWorkerConfigRespectsEnvOverride(t *testing.T) {
	os.Setenv("WORKER_BATCH_SIZE", "32")
	defer os.Unsetenv("WORKER_BATCH_SIZE")

	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)
	require.Equal(t, 32, cfg.BatchSize)
	require.Equal(t, 3, int(cfg.RetryPolicy.Attempts))
}

func TestLoadStreamingConfigDefaults(t *testing.T) {
	cfg, err := LoadStreamingConfig()
	require.NoError(t, err)
	require.Equal(t, 64, cfg.QueueCapacity)
	require.Equal(t, BackpressureReject, cfg.Backpressure)
	require.Equal(t, 30*time.Second, cfg.IdleTimeout)
}

func TestLoadAllocatorConfigDefaults(t *testing.T) {
	cfg, err := LoadAllocatorConfig()
	require.NoError(t, err)
	require.Equal(t, int64(2147483648), cfg.MaxMemoryBytes)
	require.Equal(t, 30*time.Second, cfg.CleanupInterval)
}

func TestLoadServerConfigComposesSubconfigs(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, EvictionLRU, cfg.Registry.EvictionPolicy)
	require.Equal(t, 8, cfg.Worker.BatchSize)
}
