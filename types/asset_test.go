package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func nft(addr common.Address, id int64) Asset {
	return Asset{TokenAddress: addr, TokenID: big.NewInt(id), SchemaName: SchemaERC721}
}

func ones(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = big.NewInt(1)
	}
	return out
}

func TestNewWyvernBundle(t *testing.T) {
	t.Run("order independent", func(t *testing.T) {
		a := nft(tokenA, 2)
		b := nft(tokenB, 1)
		c := nft(tokenA, 10)

		first, err := NewWyvernBundle([]Asset{a, b, c}, ones(3))
		require.NoError(t, err)
		second, err := NewWyvernBundle([]Asset{b, c, a}, ones(3))
		require.NoError(t, err)

		assert.Equal(t, first.Assets, second.Assets)
		assert.Equal(t, first.Schemas, second.Schemas)

		require.Len(t, first.Assets, 3)
		assert.Equal(t, tokenA, first.Assets[0].Address)
		assert.Equal(t, int64(2), first.Assets[0].ID.Int64())
		assert.Equal(t, int64(10), first.Assets[1].ID.Int64())
		assert.Equal(t, tokenB, first.Assets[2].Address)
	})

	t.Run("duplicate", func(t *testing.T) {
		a := nft(tokenA, 1)
		_, err := NewWyvernBundle([]Asset{a, a}, ones(2))
		require.Error(t, err)
		assert.Equal(t, "Bundle can't contain duplicate assets", err.Error())
	})

	t.Run("quantity mismatch", func(t *testing.T) {
		_, err := NewWyvernBundle([]Asset{nft(tokenA, 1)}, ones(2))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quantity for every asset")
	})

	t.Run("schemas follow assets", func(t *testing.T) {
		fungible := Asset{TokenAddress: tokenA, SchemaName: SchemaERC20}
		bundle, err := NewWyvernBundle([]Asset{nft(tokenB, 7), fungible}, []*big.Int{big.NewInt(1), big.NewInt(500)})
		require.NoError(t, err)
		assert.Equal(t, []SchemaName{SchemaERC20, SchemaERC721}, bundle.Schemas)
		assert.Nil(t, bundle.Assets[0].ID)
		assert.Equal(t, int64(500), bundle.Assets[0].Quantity.Int64())
	})
}

func TestWyvernAssetJSON(t *testing.T) {
	asset := NewWyvernAsset(nft(tokenA, 42), nil)

	raw, err := json.Marshal(asset)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42","address":"0x00000000000000000000000000000000000000aa","quantity":"1"}`, string(raw))

	var back WyvernAsset
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, asset, back)

	require.Error(t, json.Unmarshal([]byte(`{"id":"x","address":"0x00000000000000000000000000000000000000aa"}`), &back))
}
