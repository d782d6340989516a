// Package wyvern is a client for trading assets on the Wyvern exchange
// through the OpenSea orderbook: it builds, signs and posts orders, settles
// them on chain and manages the approvals trading needs.
package wyvern

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kaifufi/wyvern-sdk-go/api"
	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/config"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/internal/cache"
	"github.com/kaifufi/wyvern-sdk-go/internal/logger"
	"github.com/kaifufi/wyvern-sdk-go/stream"
	"github.com/kaifufi/wyvern-sdk-go/types"
	"github.com/kaifufi/wyvern-sdk-go/wallet"
)

// API is the part of the metadata service and orderbook the client uses.
// *api.Client implements it.
type API interface {
	GetAsset(ctx context.Context, tokenAddress common.Address, tokenID *big.Int) (*types.AssetMetadata, error)
	GetPaymentTokens(ctx context.Context, q api.TokenQuery, page int) ([]types.PaymentToken, error)
	PostOrder(ctx context.Context, order types.OrderJSON) (*types.Order, error)
	PostAssetWhitelist(ctx context.Context, tokenAddress common.Address, tokenID *big.Int, email string) (bool, error)
}

// Client is the main SDK client
type Client struct {
	cfg       ClientConfig
	contracts ContractAddresses

	provider chain.Provider
	readOnly chain.Provider
	reads    *chain.FallbackCaller
	exchange *chain.Exchange
	registry *chain.ProxyRegistry

	api    API
	bus    *events.Bus
	stream *stream.Client
	log    logrus.FieldLogger
	now    func() time.Time

	approvingAll  *AddressSet
	confirmations *confirmationTracker

	closers []func() error
}

// NewClient creates a client that signs and sends through provider. readOnly,
// when not nil, serves reads after the primary provider keeps failing and gas
// estimates on retry.
func NewClient(cfg ClientConfig, provider chain.Provider, readOnly chain.Provider, metadata API) (*Client, error) {
	if provider == nil {
		return nil, &ValidationError{Message: "a chain provider is required"}
	}
	if metadata == nil {
		return nil, &ValidationError{Message: "a metadata API is required"}
	}

	contracts := cfg.Contracts
	if types.IsNull(contracts.Exchange) {
		known, ok := DefaultContractAddresses[cfg.Network]
		if !ok {
			return nil, validationError("network must be one of %v, got %q", SupportedNetworks, cfg.Network)
		}
		contracts = known
	}

	defaults := DefaultClientConfig(cfg.Network)
	if cfg.GasIncreaseFactor == 0 {
		cfg.GasIncreaseFactor = defaults.GasIncreaseFactor
	}
	if cfg.GasIncreaseFactor < 1 {
		return nil, validationError("gas increase factor must be at least 1, got %v", cfg.GasIncreaseFactor)
	}
	if cfg.ConfirmationAttempts <= 0 {
		cfg.ConfirmationAttempts = defaults.ConfirmationAttempts
	}
	if cfg.ConfirmationInterval <= 0 {
		cfg.ConfirmationInterval = defaults.ConfirmationInterval
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = defaults.ReceiptPollInterval
	}
	if cfg.UnknownActionWait <= 0 {
		cfg.UnknownActionWait = defaults.UnknownActionWait
	}
	if cfg.SellOrderBatchSize <= 0 {
		cfg.SellOrderBatchSize = defaults.SellOrderBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.ProxyRetryDelay < 0 {
		cfg.ProxyRetryDelay = 0
	}
	if cfg.ProxyRetries <= 0 {
		cfg.ProxyRetries = defaults.ProxyRetries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var secondary chain.Caller
	if readOnly != nil {
		secondary = readOnly
	}
	reads := chain.NewFallbackCaller(provider, secondary, cfg.ReadFallbackThreshold)

	return &Client{
		cfg:           cfg,
		contracts:     contracts,
		provider:      provider,
		readOnly:      readOnly,
		reads:         reads,
		exchange:      chain.NewExchange(contracts.Exchange, reads),
		registry:      chain.NewProxyRegistry(contracts.ProxyRegistry, reads),
		api:           metadata,
		bus:           events.NewBus(),
		log:           log.WithField("network", string(cfg.Network)),
		now:           cfg.Now,
		approvingAll:  NewAddressSet(),
		confirmations: newConfirmationTracker(),
	}, nil
}

// NewClientFromConfig wires a client from loaded settings: logger, wallet,
// RPC providers, API cache, API client and stream.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}

	var signers []chain.Signer
	switch {
	case cfg.Wallet.PrivateKey != "":
		s, err := wallet.FromPrivateKeyHex(cfg.Wallet.PrivateKey)
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	case cfg.Wallet.Mnemonic != "":
		s, err := wallet.FromMnemonic(cfg.Wallet.Mnemonic, cfg.Wallet.DerivationPath)
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	provider, err := chain.Dial(ctx, cfg.RPCURL, signers...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chain provider")
	}
	closers = append(closers, func() error { provider.Close(); return nil })

	var readOnly chain.Provider
	if cfg.ReadOnlyRPCURL != "" {
		ro, err := chain.Dial(ctx, cfg.ReadOnlyRPCURL)
		if err != nil {
			cleanup()
			return nil, errors.Wrap(err, "failed to create read-only chain provider")
		}
		closers = append(closers, func() error { ro.Close(); return nil })
		readOnly = ro
	}

	var store cache.Store
	if cfg.Cache.Enabled {
		if cfg.Cache.Path != "" {
			b, err := cache.OpenBadger(cfg.Cache.Path)
			if err != nil {
				cleanup()
				return nil, err
			}
			store = b
		} else {
			store = cache.NewMemoryStore()
		}
		closers = append(closers, store.Close)
	}

	network := Network(cfg.Network)
	baseURL, endpoint := api.MainnetBaseURL, stream.MainnetEndpoint
	if network == NetworkRinkeby {
		baseURL, endpoint = api.RinkebyBaseURL, stream.TestnetEndpoint
	}
	if cfg.API.BaseURL != "" {
		baseURL = cfg.API.BaseURL
	}
	if cfg.Stream.Endpoint != "" {
		endpoint = cfg.Stream.Endpoint
	}

	metadata := api.New(api.Config{
		BaseURL:  baseURL,
		APIKey:   cfg.API.Key,
		Timeout:  cfg.API.Timeout,
		PageSize: cfg.API.PageSize,
		Logger:   log,
		Cache:    store,
		CacheTTL: cfg.Cache.TTL,
	})

	clientCfg := DefaultClientConfig(network)
	clientCfg.GasIncreaseFactor = cfg.Trading.GasIncreaseFactor
	clientCfg.ReadFallbackThreshold = cfg.Trading.ReadFallbackThreshold
	clientCfg.StrictOwnershipCheck = cfg.Trading.StrictOwnershipCheck
	clientCfg.SellOrderBatchSize = cfg.Trading.SellOrderBatchSize
	clientCfg.Logger = log

	c, err := NewClient(clientCfg, provider, readOnly, metadata)
	if err != nil {
		cleanup()
		return nil, err
	}
	c.stream = stream.New(stream.Config{
		Endpoint: endpoint,
		APIKey:   cfg.API.Key,
		Logger:   log,
	}, c.bus)
	c.closers = append(closers, c.stream.Close)
	return c, nil
}

// Bus returns the event bus every lifecycle event is dispatched on.
func (c *Client) Bus() *events.Bus {
	return c.bus
}

// Stream returns the marketplace event stream, or nil when the client was
// not built from configuration. Events it receives go to Bus.
func (c *Client) Stream() *stream.Client {
	return c.stream
}

// Contracts returns the contract addresses the client trades against.
func (c *Client) Contracts() ContractAddresses {
	return c.contracts
}

// Close closes the client and cleans up resources
func (c *Client) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
