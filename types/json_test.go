package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() *Order {
	u := NewUnhashedOrder()
	u.Exchange = common.HexToAddress("0x7Be8076f4EA4A4AD08075C2508e481d6C946D12b")
	u.Maker = common.HexToAddress("0x00000000000000000000000000000000000000Aa")
	u.Quantity = big.NewInt(3)
	u.MakerRelayerFee = big.NewInt(250)
	u.MakerReferrerFee = big.NewInt(100)
	u.FeeRecipient = OpenSeaFeeRecipient
	u.FeeMethod = FeeMethodSplitFee
	u.Side = SideSell
	u.SaleKind = SaleKindDutchAuction
	u.Target = tokenA
	u.Calldata = common.FromHex("0x23b872dd")
	u.ReplacementPattern = common.FromHex("0x00000000")
	u.BasePrice, _ = new(big.Int).SetString("1000000000000000000", 10)
	u.Extra, _ = new(big.Int).SetString("500000000000000000", 10)
	u.ListingTime = big.NewInt(1600000000)
	u.ExpirationTime = big.NewInt(1600086400)
	u.Salt, _ = new(big.Int).SetString("98765432109876543210987654321", 10)
	asset := NewWyvernAsset(nft(tokenA, 5), nil)
	u.Metadata = OrderMetadata{Asset: &asset, Schema: SchemaERC721}

	return &Order{
		UnhashedOrder: u,
		Hash:          common.HexToHash("0x01"),
		Signature:     &ECSignature{V: 28, R: common.HexToHash("0x02"), S: common.HexToHash("0x03")},
	}
}

func TestOrderJSONRoundTrip(t *testing.T) {
	order := sampleOrder()

	raw, err := json.Marshal(OrderToJSON(order))
	require.NoError(t, err)

	var decoded OrderJSON
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "0x7be8076f4ea4a4ad08075c2508e481d6c946d12b", decoded.Exchange)
	assert.Equal(t, "0x", decoded.StaticExtradata)

	back, err := OrderFromJSON(decoded)
	require.NoError(t, err)

	numeric := map[string][2]*big.Int{
		"quantity":         {order.Quantity, back.Quantity},
		"makerRelayerFee":  {order.MakerRelayerFee, back.MakerRelayerFee},
		"makerReferrerFee": {order.MakerReferrerFee, back.MakerReferrerFee},
		"basePrice":        {order.BasePrice, back.BasePrice},
		"extra":            {order.Extra, back.Extra},
		"listingTime":      {order.ListingTime, back.ListingTime},
		"expirationTime":   {order.ExpirationTime, back.ExpirationTime},
		"salt":             {order.Salt, back.Salt},
		"takerRelayerFee":  {order.TakerRelayerFee, back.TakerRelayerFee},
	}
	for name, pair := range numeric {
		assert.Zero(t, pair[0].Cmp(pair[1]), name)
	}

	assert.Equal(t, order.Maker, back.Maker)
	assert.Equal(t, order.Calldata, back.Calldata)
	assert.Equal(t, order.Side, back.Side)
	assert.Equal(t, order.SaleKind, back.SaleKind)
	assert.Equal(t, order.FeeMethod, back.FeeMethod)
	assert.Equal(t, order.Hash, back.Hash)
	assert.Equal(t, order.Signature, back.Signature)
	assert.False(t, back.WaitingForBestCounterOrder)
	require.NotNil(t, back.Metadata.Asset)
	assert.Zero(t, back.Metadata.Asset.ID.Cmp(big.NewInt(5)))
	assert.Equal(t, SchemaERC721, back.Metadata.Schema)
}

func TestOrderFromJSONErrors(t *testing.T) {
	base := OrderToJSON(sampleOrder())

	tests := []struct {
		name   string
		mutate func(*OrderJSON)
		want   string
	}{
		{"bad maker", func(j *OrderJSON) { j.Maker = "nope" }, "invalid maker"},
		{"negative price", func(j *OrderJSON) { j.BasePrice = "-1" }, "invalid basePrice"},
		{"missing salt", func(j *OrderJSON) { j.Salt = "" }, "invalid salt"},
		{"short r", func(j *OrderJSON) { j.R = "0x01" }, "invalid r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := OrderFromJSON(in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOrderFromJSONEnglishAuction(t *testing.T) {
	in := OrderToJSON(sampleOrder())
	in.FeeRecipient = LowerHex(NullAddress)
	in.V = nil

	back, err := OrderFromJSON(in)
	require.NoError(t, err)
	assert.True(t, back.WaitingForBestCounterOrder)
	assert.Nil(t, back.Signature)
}
