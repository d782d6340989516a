package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// stubCaller returns a canned result and records the last call.
type stubCaller struct {
	result []byte
	err    error
	calls  int
	last   ethereum.CallMsg
}

func (s *stubCaller) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	s.calls++
	s.last = msg
	return s.result, s.err
}

func packOutputs(t *testing.T, parsed abi.ABI, method string, values ...any) []byte {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func TestExchangeHashOrder(t *testing.T) {
	o := sampleOrder()
	stub := &stubCaller{result: packOutputs(t, GetExchangeABI(), "hashOrder_", [32]byte(o.Hash))}
	ex := NewExchange(o.Exchange, stub)

	h, err := ex.HashOrder(context.Background(), &o.UnhashedOrder)
	require.NoError(t, err)
	assert.Equal(t, o.Hash, h)
	assert.Equal(t, o.Exchange, *stub.last.To)
	assert.Equal(t, GetExchangeABI().Methods["hashOrder_"].ID, stub.last.Data[:4])
}

func TestExchangeCallErrorsAreWrapped(t *testing.T) {
	stub := &stubCaller{err: errors.New("execution reverted")}
	ex := NewExchange(common.HexToAddress("0x1"), stub)

	_, err := ex.OrdersCanMatch(context.Background(), common.Address{}, &sampleOrder().UnhashedOrder, &sampleOrder().UnhashedOrder)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ordersCanMatch_")
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestPackAtomicMatchLayout(t *testing.T) {
	sell := sampleOrder()
	sell.Signature = &types.ECSignature{V: 27, R: common.HexToHash("0xaa"), S: common.HexToHash("0xbb")}
	buy := &types.Order{UnhashedOrder: sell.UnhashedOrder}
	buy.Side = types.SideBuy
	buy.Maker = common.HexToAddress("0x2222222222222222222222222222222222222222")
	buy.FeeRecipient = types.NullAddress

	ex := NewExchange(sell.Exchange, &stubCaller{})
	data, err := ex.PackAtomicMatch(buy, sell, types.NullBlockHash)
	require.NoError(t, err)

	method := GetExchangeABI().Methods["atomicMatch_"]
	assert.Equal(t, method.ID, data[:4])

	values, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	addrs := values[0].([14]common.Address)
	assert.Equal(t, buy.Maker, addrs[1])
	assert.Equal(t, sell.Maker, addrs[8])
	assert.Equal(t, types.NullAddress, addrs[3])
	assert.Equal(t, types.OpenSeaFeeRecipient, addrs[10])

	uints := values[1].([18]*big.Int)
	assert.Equal(t, "250", uints[9].String())
	assert.Equal(t, sell.Salt.String(), uints[17].String())

	enums := values[2].([8]uint8)
	assert.Equal(t, uint8(types.SideBuy), enums[1])
	assert.Equal(t, uint8(types.SideSell), enums[5])

	vs := values[9].([2]uint8)
	assert.Equal(t, [2]uint8{0, 27}, vs)
	rss := values[10].([5][32]byte)
	assert.Equal(t, [32]byte(sell.Signature.R), rss[2])
	assert.Equal(t, [32]byte{}, rss[0])
}

func TestIsApprovedForAllTolerance(t *testing.T) {
	token := common.HexToAddress("0xaa")
	owner := common.HexToAddress("0x1")
	operator := common.HexToAddress("0x2")
	ctx := context.Background()

	stub := &stubCaller{result: packOutputs(t, GetERC721ABI(), "isApprovedForAll", true)}
	got := IsApprovedForAll(ctx, stub, token, owner, operator)
	assert.Equal(t, true, got.MustGet())

	stub = &stubCaller{result: []byte{}}
	assert.True(t, IsApprovedForAll(ctx, stub, token, owner, operator).IsAbsent())

	stub = &stubCaller{err: errors.New("method not found")}
	assert.True(t, IsApprovedForAll(ctx, stub, token, owner, operator).IsAbsent())
}

func TestProxyRegistryProxy(t *testing.T) {
	proxy := common.HexToAddress("0x9999999999999999999999999999999999999999")
	stub := &stubCaller{result: packOutputs(t, GetProxyRegistryABI(), "proxies", proxy)}
	reg := NewProxyRegistry(common.HexToAddress("0xa5409ec958c83c3f309868babaca7c86dcb077c1"), stub)

	owner := common.HexToAddress("0x1")
	got, err := reg.Proxy(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, proxy, got)
	assert.Equal(t, owner, stub.last.From)
}

func TestGetTransferSettings(t *testing.T) {
	stub := &stubCaller{result: packOutputs(t, GetERC1155ABI(), "transferSettings",
		uint8(1), uint8(2), big.NewInt(0), big.NewInt(1500))}
	s, err := GetTransferSettings(context.Background(), stub, types.EnjinAddress, common.Address{}, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, uint8(2), s.TransferFeeType)
	assert.Equal(t, 0, s.FeeCurrency.Sign())
	assert.Equal(t, "1500", s.FeeValue.String())
}

func TestStaticCheckTxOriginExtradata(t *testing.T) {
	assert.Len(t, StaticCheckTxOriginExtradata(), 4)
}

func TestFallbackCaller(t *testing.T) {
	ctx := context.Background()
	primary := &stubCaller{err: errors.New("rate limited")}
	secondary := &stubCaller{result: []byte{1}}

	f := NewFallbackCaller(primary, secondary, 1)
	_, err := f.CallContract(ctx, ethereum.CallMsg{})
	require.Error(t, err)
	assert.Equal(t, 0, secondary.calls)

	out, err := f.CallContract(ctx, ethereum.CallMsg{})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, out)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, 2, f.Failures())

	primary.err = nil
	primary.result = []byte{2}
	out, err = f.CallContract(ctx, ethereum.CallMsg{})
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, out)
	assert.Equal(t, 0, f.Failures())
}

func TestFallbackCallerWithoutSecondary(t *testing.T) {
	primary := &stubCaller{err: errors.New("down")}
	f := NewFallbackCaller(primary, nil, 0)
	_, err := f.CallContract(context.Background(), ethereum.CallMsg{})
	assert.EqualError(t, err, "down")
}
