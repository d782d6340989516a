package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ECSignature is a recoverable secp256k1 signature with V in {27, 28}.
type ECSignature struct {
	V uint8
	R common.Hash
	S common.Hash
}

// Bytes returns the signature as r || s || v.
func (s ECSignature) Bytes() []byte {
	out := make([]byte, 0, 65)
	out = append(out, s.R.Bytes()...)
	out = append(out, s.S.Bytes()...)
	return append(out, s.V)
}

// OrderMetadata lets a counterparty re-derive the transfer calldata of an
// order. Exactly one of Asset and Bundle is set.
type OrderMetadata struct {
	Asset           *WyvernAsset `json:"asset,omitempty"`
	Schema          SchemaName   `json:"schema,omitempty"`
	Bundle          *Bundle      `json:"bundle,omitempty"`
	ReferrerAddress string       `json:"referrerAddress,omitempty"`
}

// UnhashedOrder holds every field the exchange contract needs to define a trade.
type UnhashedOrder struct {
	Exchange common.Address
	Maker    common.Address
	Taker    common.Address
	Quantity *big.Int

	MakerRelayerFee  *big.Int
	TakerRelayerFee  *big.Int
	MakerProtocolFee *big.Int
	TakerProtocolFee *big.Int
	MakerReferrerFee *big.Int

	WaitingForBestCounterOrder bool
	FeeMethod                  FeeMethod
	FeeRecipient               common.Address

	Side      Side
	SaleKind  SaleKind
	Target    common.Address
	HowToCall HowToCall

	Calldata           []byte
	ReplacementPattern []byte
	StaticTarget       common.Address
	StaticExtradata    []byte

	PaymentToken common.Address
	BasePrice    *big.Int
	Extra        *big.Int

	ListingTime    *big.Int
	ExpirationTime *big.Int
	Salt           *big.Int

	// Nil unless the order is an English auction with a reserve.
	EnglishAuctionReservePrice *big.Int

	Metadata OrderMetadata
}

// Order is an UnhashedOrder with its hash and, for externally owned makers,
// a signature. Contract makers approve on chain and carry no signature.
type Order struct {
	UnhashedOrder

	Hash      common.Hash
	Signature *ECSignature

	CurrentPrice         *big.Int
	CurrentBounty        *big.Int
	CreatedTime          *big.Int
	CancelledOrFinalized bool
	MarkedInvalid        bool

	PaymentTokenContract *PaymentToken
	Asset                *AssetMetadata
	AssetBundle          *AssetBundle
}

// SignatureOrZero returns the signature, or the all-zero signature used for
// orders approved on chain.
func (o *Order) SignatureOrZero() ECSignature {
	if o.Signature == nil {
		return ECSignature{}
	}
	return *o.Signature
}

// NewUnhashedOrder returns an order with every numeric field set to zero and
// the static call hook disabled.
func NewUnhashedOrder() UnhashedOrder {
	return UnhashedOrder{
		Quantity:         big.NewInt(1),
		MakerRelayerFee:  new(big.Int),
		TakerRelayerFee:  new(big.Int),
		MakerProtocolFee: new(big.Int),
		TakerProtocolFee: new(big.Int),
		MakerReferrerFee: new(big.Int),
		BasePrice:        new(big.Int),
		Extra:            new(big.Int),
		ListingTime:      new(big.Int),
		ExpirationTime:   new(big.Int),
		Salt:             new(big.Int),
		StaticExtradata:  []byte{},
	}
}
