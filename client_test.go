package wyvern

import (
	"context"
	"encoding/hex"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/wyvern-sdk-go/api"
	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

var (
	testNow   = time.Unix(1_700_000_000, 0)
	seller    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyer     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	sellerPrx = common.HexToAddress("0x3333333333333333333333333333333333333333")
	nftToken  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	txHash    = common.HexToHash("0xabcdef")
)

var errReverted = errors.New("execution reverted")

// fakeChain is an in-memory chain.Provider. Contract calls are answered by
// handlers registered per function selector; unknown selectors revert.
type fakeChain struct {
	mu       sync.Mutex
	handlers map[string]handler
	called   map[string]int
	code     map[common.Address][]byte
	sent     []ethereum.CallMsg

	sendErr   error
	gas       uint64
	gasErr    error
	signature []byte
	signErr   error
	receipt   func(hash common.Hash) (*coretypes.Receipt, error)
}

type handler struct {
	inputs abi.Arguments
	fn     func(args []any) ([]byte, error)
}

func newFakeChain() *fakeChain {
	sig := make([]byte, 65)
	sig[31], sig[63], sig[64] = 1, 2, 27
	return &fakeChain{
		handlers:  make(map[string]handler),
		called:    make(map[string]int),
		code:      make(map[common.Address][]byte),
		gas:       100_000,
		signature: sig,
		receipt: func(common.Hash) (*coretypes.Receipt, error) {
			return &coretypes.Receipt{Status: coretypes.ReceiptStatusSuccessful}, nil
		},
	}
}

// handle answers method of parsed with the outputs fn returns for its
// decoded inputs.
func (f *fakeChain) handle(parsed abi.ABI, method string, fn func(args []any) []any) {
	m := parsed.Methods[method]
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[hex.EncodeToString(m.ID)] = handler{
		inputs: m.Inputs,
		fn: func(args []any) ([]byte, error) {
			return m.Outputs.Pack(fn(args)...)
		},
	}
}

// respond answers method with fixed outputs.
func (f *fakeChain) respond(parsed abi.ABI, method string, values ...any) {
	f.handle(parsed, method, func([]any) []any { return values })
}

// revert makes method fail.
func (f *fakeChain) revert(parsed abi.ABI, method string) {
	m := parsed.Methods[method]
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[hex.EncodeToString(m.ID)] = handler{
		inputs: m.Inputs,
		fn:     func([]any) ([]byte, error) { return nil, errReverted },
	}
}

func (f *fakeChain) calls(parsed abi.ABI, method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called[hex.EncodeToString(parsed.Methods[method].ID)]
}

func (f *fakeChain) sentTransactions() []ethereum.CallMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ethereum.CallMsg(nil), f.sent...)
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errReverted
	}
	key := hex.EncodeToString(msg.Data[:4])
	f.mu.Lock()
	f.called[key]++
	h, ok := f.handlers[key]
	f.mu.Unlock()
	if !ok {
		return nil, errReverted
	}
	args, err := h.inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	return h.fn(args)
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.gas, f.gasErr
}

func (f *fakeChain) SendTransaction(_ context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.sent = append(f.sent, msg)
	return txHash, nil
}

func (f *fakeChain) CodeAt(_ context.Context, account common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[account], nil
}

func (f *fakeChain) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	return f.receipt(hash)
}

func (f *fakeChain) SignMessage(context.Context, common.Address, []byte) ([]byte, error) {
	return f.signature, f.signErr
}

// orderFromArgs rebuilds the order passed to a single-order exchange method.
func orderFromArgs(args []any) *types.UnhashedOrder {
	addrs := args[0].([7]common.Address)
	uints := args[1].([9]*big.Int)
	return &types.UnhashedOrder{
		Exchange:           addrs[0],
		Maker:              addrs[1],
		Taker:              addrs[2],
		FeeRecipient:       addrs[3],
		Target:             addrs[4],
		StaticTarget:       addrs[5],
		PaymentToken:       addrs[6],
		MakerRelayerFee:    uints[0],
		TakerRelayerFee:    uints[1],
		MakerProtocolFee:   uints[2],
		TakerProtocolFee:   uints[3],
		BasePrice:          uints[4],
		Extra:              uints[5],
		ListingTime:        uints[6],
		ExpirationTime:     uints[7],
		Salt:               uints[8],
		FeeMethod:          types.FeeMethod(args[2].(uint8)),
		Side:               types.Side(args[3].(uint8)),
		SaleKind:           types.SaleKind(args[4].(uint8)),
		HowToCall:          types.HowToCall(args[5].(uint8)),
		Calldata:           args[6].([]byte),
		ReplacementPattern: args[7].([]byte),
		StaticExtradata:    args[8].([]byte),
	}
}

// hashLikeExchange makes hashOrder_ agree with the local order hash.
func (f *fakeChain) hashLikeExchange() {
	f.handle(chain.GetExchangeABI(), "hashOrder_", func(args []any) []any {
		return []any{[32]byte(chain.HashOrder(orderFromArgs(args)))}
	})
}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetAsset(ctx context.Context, tokenAddress common.Address, tokenID *big.Int) (*types.AssetMetadata, error) {
	args := m.Called(ctx, tokenAddress, tokenID)
	asset, _ := args.Get(0).(*types.AssetMetadata)
	return asset, args.Error(1)
}

func (m *mockAPI) GetPaymentTokens(ctx context.Context, q api.TokenQuery, page int) ([]types.PaymentToken, error) {
	args := m.Called(ctx, q, page)
	tokens, _ := args.Get(0).([]types.PaymentToken)
	return tokens, args.Error(1)
}

func (m *mockAPI) PostOrder(ctx context.Context, order types.OrderJSON) (*types.Order, error) {
	args := m.Called(ctx, order)
	posted, _ := args.Get(0).(*types.Order)
	return posted, args.Error(1)
}

func (m *mockAPI) PostAssetWhitelist(ctx context.Context, tokenAddress common.Address, tokenID *big.Int, email string) (bool, error) {
	args := m.Called(ctx, tokenAddress, tokenID, email)
	return args.Bool(0), args.Error(1)
}

func testConfig() ClientConfig {
	cfg := DefaultClientConfig(NetworkMain)
	cfg.Now = func() time.Time { return testNow }
	cfg.ConfirmationAttempts = 5
	cfg.ConfirmationInterval = time.Millisecond
	cfg.ReceiptPollInterval = time.Millisecond
	cfg.UnknownActionWait = time.Millisecond
	cfg.RetryDelay = time.Millisecond
	cfg.ProxyRetryDelay = time.Millisecond
	cfg.BatchDelay = 0
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg.Logger = log
	return cfg
}

func newTestClient(t *testing.T, fc *fakeChain, metadata *mockAPI) *Client {
	t.Helper()
	c, err := NewClient(testConfig(), fc, nil, metadata)
	require.NoError(t, err)
	return c
}

// recordEvents collects every event of the given types dispatched on c.
func recordEvents(c *Client, ts ...events.Type) func() []events.Event {
	var (
		mu  sync.Mutex
		got []events.Event
	)
	for _, typ := range ts {
		c.Bus().AddListener(typ, func(e events.Event) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}, false)
	}
	return func() []events.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]events.Event(nil), got...)
	}
}

func TestNewClient(t *testing.T) {
	fc := newFakeChain()
	metadata := &mockAPI{}

	tests := []struct {
		name    string
		cfg     func() ClientConfig
		wantErr string
	}{
		{
			name: "defaults",
			cfg:  testConfig,
		},
		{
			name: "unknown network",
			cfg: func() ClientConfig {
				cfg := testConfig()
				cfg.Network = "ropsten"
				return cfg
			},
			wantErr: "network must be one of",
		},
		{
			name: "gas factor below one",
			cfg: func() ClientConfig {
				cfg := testConfig()
				cfg.GasIncreaseFactor = 0.5
				return cfg
			},
			wantErr: "gas increase factor must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg(), fc, nil, metadata)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultContractAddresses[NetworkMain], c.Contracts())
			assert.NotNil(t, c.Bus())
			assert.Nil(t, c.Stream())
			assert.NoError(t, c.Close())
		})
	}
}

func TestNewClientRequiresDependencies(t *testing.T) {
	_, err := NewClient(testConfig(), nil, nil, &mockAPI{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewClient(testConfig(), newFakeChain(), nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}
