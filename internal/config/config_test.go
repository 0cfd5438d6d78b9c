package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidatesWithDSN(t *testing.T) {
	cfg := Default()
	cfg.Store.DSN = "postgres://localhost/bidrag"
	require.NoError(t, cfg.Validate())
}

func TestDefaultModeTable(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.ModeRetrieveK("fast"))
	assert.Equal(t, 10, cfg.ModeRetrieveK("balanced"))
	assert.Equal(t, 20, cfg.ModeRetrieveK("quality"))
	assert.Equal(t, time.Second, cfg.ModeDeadline("fast"))
	assert.Equal(t, 3*time.Second, cfg.ModeDeadline("balanced"))
	assert.Equal(t, 5*time.Second, cfg.ModeDeadline("quality"))
	assert.Equal(t, float64(60), cfg.Pipeline.RRFC)
	assert.Equal(t, "active", cfg.DefaultFilterStatus())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.Store.DSN = "" }},
		{"bad mode", func(c *Config) { c.Pipeline.DefaultMode = "turbo" }},
		{"zero concurrency", func(c *Config) { c.Pipeline.ConcurrencyLimit = 0 }},
		{"zero dimension", func(c *Config) { c.Embeddings.Dimension = 0 }},
		{"bad threshold", func(c *Config) { c.Breaker.Threshold = 1.5 }},
		{"unknown ttl mode", func(c *Config) { c.Cache.TTL["turbo"] = Duration(time.Second) }},
		{"zero l1", func(c *Config) { c.Cache.L1Capacity = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Store.DSN = "postgres://localhost/bidrag"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BIDRAG_STORE_DSN", "postgres://localhost/corpus")
	t.Setenv("BIDRAG_REDIS_ADDR", "redis:6380")
	t.Setenv("BIDRAG_PIPELINE_TOP_N", "7")
	t.Setenv("BIDRAG_PIPELINE_DEFAULT_MODE", "quality")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/corpus", cfg.Store.DSN)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 7, cfg.Pipeline.TopN)
	assert.Equal(t, "quality", cfg.Pipeline.DefaultMode)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  dsn: postgres://localhost/fromfile
pipeline:
  top_n: 3
cache:
  l1_capacity: 42
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/fromfile", cfg.Store.DSN)
	assert.Equal(t, 3, cfg.Pipeline.TopN)
	assert.Equal(t, 42, cfg.Cache.L1Capacity)
	// Untouched sections keep defaults.
	assert.Equal(t, "balanced", cfg.Pipeline.DefaultMode)
}

func TestLoadInvalidConfigFails(t *testing.T) {
	t.Setenv("BIDRAG_STORE_DSN", "postgres://localhost/corpus")
	t.Setenv("BIDRAG_PIPELINE_DEFAULT_MODE", "turbo")
	_, err := Load("")
	assert.Error(t, err)
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	assert.Equal(t, 1500*time.Millisecond, d.Std())
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
