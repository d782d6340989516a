package wyvern

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Network selects the deployment the client trades on.
type Network string

const (
	NetworkMain    Network = "main"
	NetworkRinkeby Network = "rinkeby"
)

// SupportedNetworks lists every network with known contract addresses.
var SupportedNetworks = []Network{NetworkMain, NetworkRinkeby}

// ContractAddresses holds the Wyvern deployment of one network.
type ContractAddresses struct {
	Exchange           common.Address
	ProxyRegistry      common.Address
	TokenTransferProxy common.Address
	Atomicizer         common.Address
	WETH               common.Address
	// StaticCallTxOrigin restricts English auction sell orders to the
	// marketplace matcher.
	StaticCallTxOrigin common.Address
}

// DefaultContractAddresses maps networks to their contract addresses
var DefaultContractAddresses = map[Network]ContractAddresses{
	NetworkMain: {
		Exchange:           common.HexToAddress("0x7be8076f4ea4a4ad08075c2508e481d6c946d12b"),
		ProxyRegistry:      common.HexToAddress("0xa5409ec958c83c3f309868babaca7c86dcb077c1"),
		TokenTransferProxy: common.HexToAddress("0xe5c783ee536cf5e63e792988335c4255169be4e1"),
		Atomicizer:         common.HexToAddress("0xc99f70bfd82fb7c8f8191fdfbfb735606b15e5c5"),
		WETH:               common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
		StaticCallTxOrigin: common.HexToAddress("0xbff6ade67e3717101dd8d0a7f3de1bf6623a2ba8"),
	},
	NetworkRinkeby: {
		Exchange:           common.HexToAddress("0x5206e78b21ce315ce284fb24cf05e0585a93b1d9"),
		ProxyRegistry:      common.HexToAddress("0xf57b2c51ded3a29e6891aba85459d600256cf317"),
		TokenTransferProxy: common.HexToAddress("0x82d102457854c985221249f86659c9d6cf12aa72"),
		Atomicizer:         common.HexToAddress("0x613a12b156c3ac37dd8e8e1f6d5b7da6ec1cc6d8"),
		WETH:               common.HexToAddress("0xc778417e063141139fce010982780140aa0cd5ab"),
		StaticCallTxOrigin: common.HexToAddress("0xe291abab95677bc652a44f973a8e06d48464e11c"),
	},
}

// ClientConfig holds the runtime settings of a Client. Zero durations and
// counts take the defaults of DefaultClientConfig.
type ClientConfig struct {
	Network Network
	// Contracts overrides the network deployment when its Exchange is set.
	Contracts ContractAddresses

	GasIncreaseFactor     float64
	ReadFallbackThreshold int
	// StrictOwnershipCheck fails an order when the balance lookup errors.
	// By default the asset is treated as owned and the exchange is left to
	// reject the match.
	StrictOwnershipCheck bool

	ConfirmationAttempts int
	ConfirmationInterval time.Duration
	ReceiptPollInterval  time.Duration
	// UnknownActionWait is how long a contract-wallet transaction without a
	// confirmation check is given to land.
	UnknownActionWait time.Duration

	SellOrderBatchSize int
	BatchDelay         time.Duration

	// RetryDelay spaces the single retry of balance, match and transfer checks.
	RetryDelay      time.Duration
	ProxyRetryDelay time.Duration
	ProxyRetries    int

	Now    func() time.Time
	Logger logrus.FieldLogger
}

// DefaultClientConfig returns the settings for network.
func DefaultClientConfig(network Network) ClientConfig {
	return ClientConfig{
		Network:              network,
		GasIncreaseFactor:    1.01,
		ConfirmationAttempts: 60,
		ConfirmationInterval: 5 * time.Second,
		ReceiptPollInterval:  time.Second,
		UnknownActionWait:    time.Minute,
		SellOrderBatchSize:   3,
		BatchDelay:           500 * time.Millisecond,
		RetryDelay:           500 * time.Millisecond,
		ProxyRetryDelay:      time.Second,
		ProxyRetries:         10,
	}
}
