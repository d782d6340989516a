package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, NetworkMain, cfg.Network)
	assert.Equal(t, 1.01, cfg.Trading.GasIncreaseFactor)
	assert.False(t, cfg.Trading.StrictOwnershipCheck)
	assert.Equal(t, 3, cfg.Trading.SellOrderBatchSize)
	assert.Equal(t, 20, cfg.API.PageSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WYVERN_NETWORK", "rinkeby")
	t.Setenv("WYVERN_API_KEY", "env-key")
	t.Setenv("WYVERN_CACHE_TTL", "1m")
	t.Setenv("WYVERN_LOG_LEVEL", "debug")
	t.Setenv("WYVERN_TRADING_GAS_INCREASE_FACTOR", "1.2")
	t.Setenv("WYVERN_TRADING_STRICT_OWNERSHIP_CHECK", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, NetworkRinkeby, cfg.Network)
	assert.Equal(t, "env-key", cfg.API.Key)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1.2, cfg.Trading.GasIncreaseFactor)
	assert.True(t, cfg.Trading.StrictOwnershipCheck)
	assert.Equal(t, 3, cfg.Trading.SellOrderBatchSize)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: rinkeby
rpc_url: http://localhost:8545
api:
  key: file-key
  timeout: 10s
trading:
  sell_order_batch_size: 5
  read_fallback_threshold: 2
cache:
  enabled: true
  path: /tmp/wyvern-cache
`), 0o600))
	t.Setenv("WYVERN_API_KEY", "env-key")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, NetworkRinkeby, cfg.Network)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, "env-key", cfg.API.Key)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Trading.SellOrderBatchSize)
	assert.Equal(t, 2, cfg.Trading.ReadFallbackThreshold)
	assert.Equal(t, 1.01, cfg.Trading.GasIncreaseFactor)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/wyvern-cache", cfg.Cache.Path)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown network", func(c *Config) { c.Network = "ropsten" }},
		{"gas factor below one", func(c *Config) { c.Trading.GasIncreaseFactor = 0.9 }},
		{"zero batch size", func(c *Config) { c.Trading.SellOrderBatchSize = 0 }},
		{"negative fallback threshold", func(c *Config) { c.Trading.ReadFallbackThreshold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
