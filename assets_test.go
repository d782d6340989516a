package wyvern

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/wyvern-sdk-go/api"
	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

func TestWrapEth(t *testing.T) {
	fc := newFakeChain()
	c := newTestClient(t, fc, &mockAPI{})
	got := recordEvents(c, events.WrapEth)

	hash, err := c.WrapEth(context.Background(), decimal.RequireFromString("0.25"), buyer)
	require.NoError(t, err)
	assert.Equal(t, txHash, hash)

	sent := fc.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, c.Contracts().WETH, *sent[0].To)
	assert.Equal(t, chain.GetWETHABI().Methods["deposit"].ID, sent[0].Data[:4])
	assert.Equal(t, "250000000000000000", sent[0].Value.String())

	evs := got()
	require.Len(t, evs, 1)
	assert.Equal(t, "250000000000000000", evs[0].(events.WrapEthEvent).Amount.String())
}

func TestUnwrapWeth(t *testing.T) {
	fc := newFakeChain()
	c := newTestClient(t, fc, &mockAPI{})

	_, err := c.UnwrapWeth(context.Background(), decimal.NewFromInt(2), buyer)
	require.NoError(t, err)

	want, err := chain.PackWETHWithdraw(new(big.Int).Mul(big.NewInt(2), oneEther))
	require.NoError(t, err)
	sent := fc.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, want, sent[0].Data)
	assert.Nil(t, sent[0].Value)
}

func TestTransfer(t *testing.T) {
	erc20 := common.HexToAddress("0x9a9a9a9a9a9a9a9a9a9a9a9a9a9a9a9a9a9a9a9a")
	tests := []struct {
		name     string
		asset    types.Asset
		quantity *big.Int
		selector string
		target   common.Address
	}{
		{
			name:     "erc721",
			asset:    nftAsset(7),
			selector: "transferFrom(address,address,uint256)",
			target:   nftToken,
		},
		{
			name:     "cryptokitties",
			asset:    types.Asset{TokenAddress: types.CryptoKittiesAddress, TokenID: big.NewInt(7), SchemaName: types.SchemaERC721},
			selector: "transfer(address,uint256)",
			target:   types.CryptoKittiesAddress,
		},
		{
			name:     "old erc721 version",
			asset:    types.Asset{TokenAddress: nftToken, TokenID: big.NewInt(7), SchemaName: types.SchemaERC721, Version: types.TokenStandardERC721v1},
			selector: "transfer(address,uint256)",
			target:   nftToken,
		},
		{
			name:     "erc20",
			asset:    types.Asset{TokenAddress: erc20, SchemaName: types.SchemaERC20},
			quantity: big.NewInt(500),
			selector: "transfer(address,uint256)",
			target:   erc20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeChain()
			c := newTestClient(t, fc, &mockAPI{})
			got := recordEvents(c, events.TransferOne)

			_, err := c.Transfer(context.Background(), TransferParams{
				FromAddress: seller,
				ToAddress:   buyer,
				Asset:       tt.asset,
				Quantity:    tt.quantity,
			})
			require.NoError(t, err)

			sent := fc.sentTransactions()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.target, *sent[0].To)
			assert.Equal(t, seller, sent[0].From)
			assert.Equal(t, selector(tt.selector), sent[0].Data[:4])
			assert.Contains(t, common.Bytes2Hex(sent[0].Data), common.Bytes2Hex(common.LeftPadBytes(buyer.Bytes(), 32)))
			assert.Len(t, got(), 1)
		})
	}
}

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func TestTransferAll(t *testing.T) {
	fc := newFakeChain()
	fc.respond(chain.GetProxyRegistryABI(), "proxies", sellerPrx)
	fc.respond(chain.GetERC721ABI(), "ownerOf", seller)
	fc.respond(chain.GetERC721ABI(), "isApprovedForAll", true)
	c := newTestClient(t, fc, &mockAPI{})
	got := recordEvents(c, events.TransferAll)

	_, err := c.TransferAll(context.Background(), TransferAllParams{
		Assets:      []types.Asset{nftAsset(1), nftAsset(2)},
		FromAddress: seller,
		ToAddress:   buyer,
	})
	require.NoError(t, err)

	sent := fc.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, sellerPrx, *sent[0].To)
	assert.Equal(t, seller, sent[0].From)

	evs := got()
	require.Len(t, evs, 1)
	assert.Len(t, evs[0].(events.TransferAllEvent).Assets, 2)
}

func TestTransferAllValidation(t *testing.T) {
	c := newTestClient(t, newFakeChain(), &mockAPI{})

	_, err := c.TransferAll(context.Background(), TransferAllParams{FromAddress: seller, ToAddress: buyer})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = c.TransferAll(context.Background(), TransferAllParams{
		Assets:      []types.Asset{nftAsset(1), nftAsset(2)},
		Quantities:  []*big.Int{big.NewInt(1)},
		FromAddress: seller,
		ToAddress:   buyer,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIsAssetTransferrable(t *testing.T) {
	tests := []struct {
		name     string
		useProxy bool
		proxy    common.Address
		gasErr   error
		want     bool
	}{
		{name: "estimate succeeds", want: true},
		{name: "estimate fails", gasErr: errReverted, want: false},
		{name: "through proxy", useProxy: true, proxy: sellerPrx, want: true},
		{name: "no proxy", useProxy: true, proxy: types.NullAddress, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeChain()
			fc.gasErr = tt.gasErr
			fc.respond(chain.GetProxyRegistryABI(), "proxies", tt.proxy)
			c := newTestClient(t, fc, &mockAPI{})

			ok, err := c.IsAssetTransferrable(context.Background(), TransferCheckParams{
				Asset:       nftAsset(7),
				FromAddress: seller,
				ToAddress:   buyer,
				UseProxy:    tt.useProxy,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestGetFungibleTokens(t *testing.T) {
	dai := types.PaymentToken{
		Name:     "Dai Stablecoin",
		Symbol:   "DAI",
		Decimals: 18,
		Address:  common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"),
	}

	tests := []struct {
		name    string
		filter  FungibleTokenFilter
		fromAPI []types.PaymentToken
		want    []string
	}{
		{name: "no filter", fromAPI: []types.PaymentToken{dai}, want: []string{"WETH", "DAI"}},
		{name: "symbol ignores case", filter: FungibleTokenFilter{Symbol: "weth"}, want: []string{"WETH"}},
		{name: "other symbol", filter: FungibleTokenFilter{Symbol: "DAI"}, fromAPI: []types.PaymentToken{dai}, want: []string{"DAI"}},
		{name: "name must be exact", filter: FungibleTokenFilter{Name: "wrapped ether"}, want: nil},
		{name: "address", filter: FungibleTokenFilter{Address: mo.Some(dai.Address)}, fromAPI: []types.PaymentToken{dai}, want: []string{"DAI"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := &mockAPI{}
			metadata.On("GetPaymentTokens", mock.Anything, api.TokenQuery{
				Symbol:  tt.filter.Symbol,
				Address: tt.filter.Address.OrEmpty(),
				Name:    tt.filter.Name,
			}, 0).Return(tt.fromAPI, nil).Once()
			c := newTestClient(t, newFakeChain(), metadata)

			tokens, err := c.GetFungibleTokens(context.Background(), tt.filter)
			require.NoError(t, err)
			var symbols []string
			for _, tok := range tokens {
				symbols = append(symbols, tok.Symbol)
			}
			assert.Equal(t, tt.want, symbols)
			metadata.AssertExpectations(t)
		})
	}
}
