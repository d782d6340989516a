// Package config loads SDK settings from the environment and optional YAML
// files.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kaifufi/wyvern-sdk-go/internal/logger"
)

const (
	NetworkMain    = "main"
	NetworkRinkeby = "rinkeby"
)

// Config is the full set of SDK settings. Environment variables are prefixed
// with WYVERN_.
type Config struct {
	Network        string `yaml:"network" env:"NETWORK"`
	RPCURL         string `yaml:"rpc_url" env:"RPC_URL"`
	ReadOnlyRPCURL string `yaml:"read_only_rpc_url" env:"READ_ONLY_RPC_URL"`

	API     APIConfig     `yaml:"api" envPrefix:"API_"`
	Stream  StreamConfig  `yaml:"stream" envPrefix:"STREAM_"`
	Wallet  WalletConfig  `yaml:"wallet" envPrefix:"WALLET_"`
	Log     logger.Config `yaml:"log" envPrefix:"LOG_"`
	Cache   CacheConfig   `yaml:"cache" envPrefix:"CACHE_"`
	Trading TradingConfig `yaml:"trading" envPrefix:"TRADING_"`
}

type APIConfig struct {
	BaseURL  string        `yaml:"base_url" env:"BASE_URL"`
	Key      string        `yaml:"key" env:"KEY"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
	PageSize int           `yaml:"page_size" env:"PAGE_SIZE"`
}

type StreamConfig struct {
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// WalletConfig selects the signing key. PrivateKey wins over Mnemonic.
type WalletConfig struct {
	PrivateKey     string `yaml:"private_key" env:"PRIVATE_KEY"`
	Mnemonic       string `yaml:"mnemonic" env:"MNEMONIC"`
	DerivationPath string `yaml:"derivation_path" env:"DERIVATION_PATH"`
}

// CacheConfig controls the API response cache. An empty Path keeps it in
// memory.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Path    string        `yaml:"path" env:"PATH"`
	TTL     time.Duration `yaml:"ttl" env:"TTL"`
}

type TradingConfig struct {
	GasIncreaseFactor     float64 `yaml:"gas_increase_factor" env:"GAS_INCREASE_FACTOR"`
	ReadFallbackThreshold int     `yaml:"read_fallback_threshold" env:"READ_FALLBACK_THRESHOLD"`
	StrictOwnershipCheck  bool    `yaml:"strict_ownership_check" env:"STRICT_OWNERSHIP_CHECK"`
	SellOrderBatchSize    int     `yaml:"sell_order_batch_size" env:"SELL_ORDER_BATCH_SIZE"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Network: NetworkMain,
		API: APIConfig{
			Timeout:  30 * time.Second,
			PageSize: 20,
		},
		Wallet: WalletConfig{
			DerivationPath: "m/44'/60'/0'/0/0",
		},
		Log: logger.Config{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Trading: TradingConfig{
			GasIncreaseFactor:  1.01,
			SellOrderBatchSize: 3,
		},
	}
}

var envOptions = env.Options{Prefix: "WYVERN_"}

// Load reads a .env file when present and applies the environment over the
// defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := env.ParseWithOptions(cfg, envOptions); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the YAML file at path over the defaults, then applies the
// environment over the file.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := env.ParseWithOptions(cfg, envOptions); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no client could run with.
func (c *Config) Validate() error {
	switch c.Network {
	case NetworkMain, NetworkRinkeby:
	default:
		return errors.Errorf("unsupported network %q", c.Network)
	}
	if c.Trading.GasIncreaseFactor < 1 {
		return errors.Errorf("gas increase factor must be at least 1, got %v", c.Trading.GasIncreaseFactor)
	}
	if c.Trading.SellOrderBatchSize < 1 {
		return errors.Errorf("sell order batch size must be positive, got %d", c.Trading.SellOrderBatchSize)
	}
	if c.Trading.ReadFallbackThreshold < 0 {
		return errors.Errorf("read fallback threshold must not be negative, got %d", c.Trading.ReadFallbackThreshold)
	}
	return nil
}
