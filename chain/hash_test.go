package chain

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

func sampleOrder() *types.Order {
	o := &types.Order{UnhashedOrder: types.NewUnhashedOrder()}
	o.Exchange = common.HexToAddress("0x7be8076f4ea4a4ad08075c2508e481d6c946d12b")
	o.Maker = common.HexToAddress("0x1111111111111111111111111111111111111111")
	o.FeeRecipient = types.OpenSeaFeeRecipient
	o.Side = types.SideSell
	o.SaleKind = types.SaleKindDutchAuction
	o.Target = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	o.HowToCall = types.HowToCallCall
	o.Calldata = common.FromHex("0x23b872dd")
	o.ReplacementPattern = common.FromHex("0x00000000")
	o.PaymentToken = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	o.MakerRelayerFee = big.NewInt(250)
	o.BasePrice, _ = new(big.Int).SetString("1000000000000000000", 10)
	o.Extra = big.NewInt(5000)
	o.ListingTime = big.NewInt(1600000000)
	o.ExpirationTime = big.NewInt(1600086400)
	o.Salt, _ = new(big.Int).SetString("83006245783548033686093530747847303952463217644495033304999143031082661844460", 10)
	o.Hash = HashOrder(&o.UnhashedOrder)
	return o
}

func TestHashOrderIsFieldSensitive(t *testing.T) {
	base := sampleOrder()
	h := HashOrder(&base.UnhashedOrder)
	assert.Equal(t, h, HashOrder(&base.UnhashedOrder))

	for _, tc := range []struct {
		name   string
		mutate func(o *types.UnhashedOrder)
	}{
		{"maker", func(o *types.UnhashedOrder) { o.Maker = common.HexToAddress("0x2") }},
		{"side", func(o *types.UnhashedOrder) { o.Side = types.SideBuy }},
		{"salt", func(o *types.UnhashedOrder) { o.Salt = big.NewInt(1) }},
		{"calldata", func(o *types.UnhashedOrder) { o.Calldata = common.FromHex("0x23b872dd00") }},
		{"extra", func(o *types.UnhashedOrder) { o.Extra = new(big.Int) }},
		{"static target", func(o *types.UnhashedOrder) { o.StaticTarget = common.HexToAddress("0x3") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			o := sampleOrder()
			tc.mutate(&o.UnhashedOrder)
			assert.NotEqual(t, h, HashOrder(&o.UnhashedOrder))
		})
	}
}

// TestHashOrderKnownVector pins the packed layout hashOrder_ reads: 20-byte
// addresses, 32-byte words, 1-byte enums, raw bytes, in declaration order.
func TestHashOrderKnownVector(t *testing.T) {
	maker := common.HexToAddress("0x1111111111111111111111111111111111111111")
	word := func(n int64) string { return common.Bytes2Hex(common.LeftPadBytes(big.NewInt(n).Bytes(), 32)) }
	zeros := strings.Repeat("00", 32)
	salt, _ := new(big.Int).SetString("83006245783548033686093530747847303952463217644495033304999143031082661844460", 10)

	o := types.NewUnhashedOrder()
	o.Exchange = common.HexToAddress("0x7be8076f4ea4a4ad08075c2508e481d6c946d12b")
	o.Maker = maker
	o.MakerRelayerFee = big.NewInt(250)
	o.FeeRecipient = types.OpenSeaFeeRecipient
	o.FeeMethod = types.FeeMethodSplitFee
	o.Side = types.SideSell
	o.SaleKind = types.SaleKindFixedPrice
	o.Target = types.CryptoKittiesAddress
	o.HowToCall = types.HowToCallCall
	o.Calldata = common.FromHex("0x23b872dd" + zeros[:24] + common.Bytes2Hex(maker.Bytes()) + zeros + word(7))
	o.ReplacementPattern = common.FromHex("0x00000000" + zeros + strings.Repeat("ff", 32) + zeros)
	o.BasePrice, _ = new(big.Int).SetString("1000000000000000000", 10)
	o.ListingTime = big.NewInt(1600000000)
	o.Salt = salt

	preimage := common.FromHex(strings.Join([]string{
		"7be8076f4ea4a4ad08075c2508e481d6c946d12b", // exchange
		"1111111111111111111111111111111111111111", // maker
		"0000000000000000000000000000000000000000", // taker
		word(250), zeros, zeros, zeros, // relayer and protocol fees
		"5b3256965e7c3cf26e11fcaf296dfc8807c01073", // fee recipient
		"01", "01", "00", // fee method, side, sale kind
		"06012c8cf97bead5deae237070f9587f8e7a266d", // target
		"00", // how to call
		common.Bytes2Hex(o.Calldata),
		common.Bytes2Hex(o.ReplacementPattern),
		"0000000000000000000000000000000000000000", // static target, empty extradata follows
		"0000000000000000000000000000000000000000", // payment token
		common.Bytes2Hex(math.U256Bytes(new(big.Int).Set(o.BasePrice))),
		zeros, // extra
		word(1600000000),
		zeros, // expiration
		common.Bytes2Hex(math.U256Bytes(new(big.Int).Set(salt))),
	}, ""))
	require.Len(t, preimage, 632)

	want := common.HexToHash("0x2d71e9ffffadd3de56302ed6b44b03fb75f5d5784bbd3b8b473ccb3900af47e9")
	assert.Equal(t, want, crypto.Keccak256Hash(preimage))
	assert.Equal(t, want, HashOrder(&o))
}

func TestHashOrderIgnoresOffChainFields(t *testing.T) {
	o := sampleOrder()
	h := HashOrder(&o.UnhashedOrder)
	o.Quantity = big.NewInt(5)
	o.MakerReferrerFee = big.NewInt(100)
	o.Metadata.ReferrerAddress = "0xabc"
	assert.Equal(t, h, HashOrder(&o.UnhashedOrder))
}

func TestHashOrderSurvivesJSONRoundTrip(t *testing.T) {
	o := sampleOrder()
	parsed, err := types.OrderFromJSON(types.OrderToJSON(o))
	require.NoError(t, err)
	assert.Equal(t, o.Hash, HashOrder(&parsed.UnhashedOrder))
	assert.Equal(t, o.Hash, parsed.Hash)
}

func TestParseSignatureRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash := sampleOrder().Hash

	raw, err := crypto.Sign(PersonalSignHash(hash).Bytes(), key)
	require.NoError(t, err)

	sig, err := ParseSignature(raw)
	require.NoError(t, err)
	assert.Contains(t, []uint8{27, 28}, sig.V)

	signer, err := RecoverSigner(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}

func TestParseSignatureOrderings(t *testing.T) {
	r := bytes.Repeat([]byte{0x11}, 32)
	s := bytes.Repeat([]byte{0x22}, 32)

	rsv := append(append(append([]byte{}, r...), s...), 28)
	sig, err := ParseSignature(rsv)
	require.NoError(t, err)
	assert.Equal(t, uint8(28), sig.V)
	assert.Equal(t, common.BytesToHash(r), sig.R)

	vrs := append(append([]byte{1}, r...), s...)
	sig, err = ParseSignature(vrs)
	require.NoError(t, err)
	assert.Equal(t, uint8(28), sig.V)
	assert.Equal(t, common.BytesToHash(r), sig.R)
	assert.Equal(t, common.BytesToHash(s), sig.S)

	_, err = ParseSignature(bytes.Repeat([]byte{5}, 65))
	assert.EqualError(t, err, "Invalid signature")

	_, err = ParseSignature(rsv[:64])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignatureBytesParseBack(t *testing.T) {
	sig := types.ECSignature{V: 27, R: common.HexToHash("0x01"), S: common.HexToHash("0x02")}
	parsed, err := ParseSignature(sig.Bytes())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
}
