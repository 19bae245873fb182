package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 10, cfg.Worker.BatchSize)
	assert.Equal(t, 5000, cfg.Worker.PollIntervalMs)
	assert.Equal(t, 24, cfg.Dedup.WindowHours)
	assert.InDelta(t, 0.66, cfg.Dedup.JaccardThreshold, 0.001)
	assert.Equal(t, 4, cfg.Dedup.MaxParallelGroups)
	assert.Equal(t, "signal", cfg.Trust.Scheme)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Empty(t, cfg.Anthropic.Key)
	assert.Equal(t, 15, cfg.Probe.TimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRUSTPIPE_STORE_DRIVER", "sqlite")
	t.Setenv("TRUSTPIPE_STORE_DATABASE_URL", "trustpipe.db")
	t.Setenv("TRUSTPIPE_WORKER_BATCH_SIZE", "25")
	t.Setenv("TRUSTPIPE_TRUST_SCHEME", "completeness")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "trustpipe.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 25, cfg.Worker.BatchSize)
	assert.Equal(t, "completeness", cfg.Trust.Scheme)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "shouting", Format: "json"}))
}
