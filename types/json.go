package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// OrderJSON is the shape the orderbook accepts when an order is posted.
type OrderJSON struct {
	Exchange string `json:"exchange"`
	Maker    string `json:"maker"`
	Taker    string `json:"taker"`

	MakerRelayerFee  string `json:"makerRelayerFee"`
	TakerRelayerFee  string `json:"takerRelayerFee"`
	MakerProtocolFee string `json:"makerProtocolFee"`
	TakerProtocolFee string `json:"takerProtocolFee"`
	MakerReferrerFee string `json:"makerReferrerFee"`

	FeeMethod    FeeMethod `json:"feeMethod"`
	FeeRecipient string    `json:"feeRecipient"`
	Side         Side      `json:"side"`
	SaleKind     SaleKind  `json:"saleKind"`
	Target       string    `json:"target"`
	HowToCall    HowToCall `json:"howToCall"`

	Calldata           string `json:"calldata"`
	ReplacementPattern string `json:"replacementPattern"`
	StaticTarget       string `json:"staticTarget"`
	StaticExtradata    string `json:"staticExtradata"`
	PaymentToken       string `json:"paymentToken"`

	Quantity                   string `json:"quantity"`
	BasePrice                  string `json:"basePrice"`
	EnglishAuctionReservePrice string `json:"englishAuctionReservePrice,omitempty"`
	Extra                      string `json:"extra"`
	CreatedTime                string `json:"createdTime,omitempty"`
	ListingTime                string `json:"listingTime"`
	ExpirationTime             string `json:"expirationTime"`
	Salt                       string `json:"salt"`

	Metadata OrderMetadata `json:"metadata"`

	V    *uint8 `json:"v,omitempty"`
	R    string `json:"r,omitempty"`
	S    string `json:"s,omitempty"`
	Hash string `json:"hash"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func hexBytes(b []byte) string {
	if len(b) == 0 {
		return "0x"
	}
	return hexutil.Encode(b)
}

// OrderToJSON renders order with lower-cased addresses and decimal strings.
func OrderToJSON(order *Order) OrderJSON {
	out := OrderJSON{
		Exchange:           LowerHex(order.Exchange),
		Maker:              LowerHex(order.Maker),
		Taker:              LowerHex(order.Taker),
		MakerRelayerFee:    bigString(order.MakerRelayerFee),
		TakerRelayerFee:    bigString(order.TakerRelayerFee),
		MakerProtocolFee:   bigString(order.MakerProtocolFee),
		TakerProtocolFee:   bigString(order.TakerProtocolFee),
		MakerReferrerFee:   bigString(order.MakerReferrerFee),
		FeeMethod:          order.FeeMethod,
		FeeRecipient:       LowerHex(order.FeeRecipient),
		Side:               order.Side,
		SaleKind:           order.SaleKind,
		Target:             LowerHex(order.Target),
		HowToCall:          order.HowToCall,
		Calldata:           hexBytes(order.Calldata),
		ReplacementPattern: hexBytes(order.ReplacementPattern),
		StaticTarget:       LowerHex(order.StaticTarget),
		StaticExtradata:    hexBytes(order.StaticExtradata),
		PaymentToken:       LowerHex(order.PaymentToken),
		Quantity:           bigString(order.Quantity),
		BasePrice:          bigString(order.BasePrice),
		Extra:              bigString(order.Extra),
		ListingTime:        bigString(order.ListingTime),
		ExpirationTime:     bigString(order.ExpirationTime),
		Salt:               bigString(order.Salt),
		Metadata:           order.Metadata,
		Hash:               order.Hash.Hex(),
	}
	if order.EnglishAuctionReservePrice != nil {
		out.EnglishAuctionReservePrice = order.EnglishAuctionReservePrice.String()
	}
	if order.CreatedTime != nil {
		out.CreatedTime = order.CreatedTime.String()
	}
	if order.Signature != nil {
		v := order.Signature.V
		out.V = &v
		out.R = order.Signature.R.Hex()
		out.S = order.Signature.S.Hex()
	}
	return out
}

type jsonDecoder struct {
	err error
}

func (d *jsonDecoder) address(field, s string) common.Address {
	if d.err != nil {
		return NullAddress
	}
	if !common.IsHexAddress(s) {
		d.err = errors.Errorf("invalid %s: %q is not an address", field, s)
		return NullAddress
	}
	return common.HexToAddress(s)
}

func (d *jsonDecoder) bigInt(field, s string, optional bool) *big.Int {
	if d.err != nil {
		return nil
	}
	if s == "" {
		if optional {
			return nil
		}
		d.err = errors.Errorf("invalid %s: missing", field)
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		d.err = errors.Errorf("invalid %s: %q is not a non-negative integer", field, s)
		return nil
	}
	return v
}

func (d *jsonDecoder) bytes(field, s string) []byte {
	if d.err != nil {
		return nil
	}
	if s == "" || s == "0x" {
		return []byte{}
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		d.err = errors.Wrapf(err, "invalid %s", field)
		return nil
	}
	return b
}

func (d *jsonDecoder) hash(field, s string) common.Hash {
	b := d.bytes(field, s)
	if d.err == nil && len(b) != common.HashLength {
		d.err = errors.Errorf("invalid %s: expected %d bytes, got %d", field, common.HashLength, len(b))
	}
	return common.BytesToHash(b)
}

// OrderFromJSON parses the post shape back into an Order. The order hash is
// taken as given; callers that need assurance recompute it.
func OrderFromJSON(in OrderJSON) (*Order, error) {
	d := &jsonDecoder{}
	o := &Order{}
	o.Exchange = d.address("exchange", in.Exchange)
	o.Maker = d.address("maker", in.Maker)
	o.Taker = d.address("taker", in.Taker)
	o.MakerRelayerFee = d.bigInt("makerRelayerFee", in.MakerRelayerFee, false)
	o.TakerRelayerFee = d.bigInt("takerRelayerFee", in.TakerRelayerFee, false)
	o.MakerProtocolFee = d.bigInt("makerProtocolFee", in.MakerProtocolFee, false)
	o.TakerProtocolFee = d.bigInt("takerProtocolFee", in.TakerProtocolFee, false)
	o.MakerReferrerFee = d.bigInt("makerReferrerFee", in.MakerReferrerFee, true)
	o.FeeMethod = in.FeeMethod
	o.FeeRecipient = d.address("feeRecipient", in.FeeRecipient)
	o.Side = in.Side
	o.SaleKind = in.SaleKind
	o.Target = d.address("target", in.Target)
	o.HowToCall = in.HowToCall
	o.Calldata = d.bytes("calldata", in.Calldata)
	o.ReplacementPattern = d.bytes("replacementPattern", in.ReplacementPattern)
	o.StaticTarget = d.address("staticTarget", in.StaticTarget)
	o.StaticExtradata = d.bytes("staticExtradata", in.StaticExtradata)
	o.PaymentToken = d.address("paymentToken", in.PaymentToken)
	o.Quantity = d.bigInt("quantity", in.Quantity, true)
	o.BasePrice = d.bigInt("basePrice", in.BasePrice, false)
	o.EnglishAuctionReservePrice = d.bigInt("englishAuctionReservePrice", in.EnglishAuctionReservePrice, true)
	o.Extra = d.bigInt("extra", in.Extra, false)
	o.CreatedTime = d.bigInt("createdTime", in.CreatedTime, true)
	o.ListingTime = d.bigInt("listingTime", in.ListingTime, false)
	o.ExpirationTime = d.bigInt("expirationTime", in.ExpirationTime, false)
	o.Salt = d.bigInt("salt", in.Salt, false)
	if in.Hash != "" {
		o.Hash = d.hash("hash", in.Hash)
	}
	if in.V != nil {
		o.Signature = &ECSignature{
			V: *in.V,
			R: d.hash("r", in.R),
			S: d.hash("s", in.S),
		}
	}
	if d.err != nil {
		return nil, d.err
	}

	if o.MakerReferrerFee == nil {
		o.MakerReferrerFee = new(big.Int)
	}
	if o.Quantity == nil {
		o.Quantity = big.NewInt(1)
	}
	o.Metadata = in.Metadata
	o.WaitingForBestCounterOrder = IsNull(o.FeeRecipient)
	return o, nil
}
