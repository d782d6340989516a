package wyvern

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// SellOrderParams describes a listing of a single asset. Amounts are in
// whole units of the payment token; Quantity is in whole units of the asset
// and defaults to 1.
type SellOrderParams struct {
	Asset          types.Asset
	AccountAddress common.Address
	StartAmount    decimal.Decimal
	// EndAmount makes the listing a Dutch auction ending at this price.
	EndAmount      mo.Option[decimal.Decimal]
	Quantity       decimal.Decimal
	ListingTime    mo.Option[int64]
	ExpirationTime int64
	// WaitForHighestBid makes the listing an English auction.
	WaitForHighestBid          bool
	EnglishAuctionReservePrice mo.Option[decimal.Decimal]
	// PaymentTokenAddress defaults to ether.
	PaymentTokenAddress    mo.Option[common.Address]
	ExtraBountyBasisPoints int64
	// BuyerAddress makes the listing private to one buyer.
	BuyerAddress mo.Option[common.Address]
	// BuyerEmail whitelists the asset for the owner of this email.
	BuyerEmail mo.Option[string]
}

// BuyOrderParams describes an offer on a single asset.
type BuyOrderParams struct {
	Asset          types.Asset
	AccountAddress common.Address
	StartAmount    decimal.Decimal
	Quantity       decimal.Decimal
	ExpirationTime int64
	// PaymentTokenAddress defaults to WETH.
	PaymentTokenAddress mo.Option[common.Address]
	// SellOrder is the listing the offer is made against, if any.
	SellOrder       mo.Option[*types.Order]
	ReferrerAddress mo.Option[common.Address]
}

// BundleSellOrderParams describes a listing of several assets sold together.
type BundleSellOrderParams struct {
	BundleName         string
	BundleDescription  string
	BundleExternalLink string
	Assets             []types.Asset
	// Quantities default to 1 per asset.
	Quantities []decimal.Decimal
	// Collection is the slug of the collection every asset belongs to. When
	// set, the collection's fees apply instead of the defaults.
	Collection                 mo.Option[string]
	AccountAddress             common.Address
	StartAmount                decimal.Decimal
	EndAmount                  mo.Option[decimal.Decimal]
	ListingTime                mo.Option[int64]
	ExpirationTime             int64
	WaitForHighestBid          bool
	EnglishAuctionReservePrice mo.Option[decimal.Decimal]
	PaymentTokenAddress        mo.Option[common.Address]
	ExtraBountyBasisPoints     int64
	BuyerAddress               mo.Option[common.Address]
}

// BundleBuyOrderParams describes an offer on several assets together.
type BundleBuyOrderParams struct {
	Assets              []types.Asset
	Quantities          []decimal.Decimal
	Collection          mo.Option[string]
	AccountAddress      common.Address
	StartAmount         decimal.Decimal
	ExpirationTime      int64
	PaymentTokenAddress mo.Option[common.Address]
	SellOrder           mo.Option[*types.Order]
	ReferrerAddress     mo.Option[common.Address]
}

// FactorySellOrderParams describes NumberOfOrders listings of each of Assets,
// typically the mintable options of a factory contract.
type FactorySellOrderParams struct {
	Assets                 []types.Asset
	AccountAddress         common.Address
	StartAmount            decimal.Decimal
	EndAmount              mo.Option[decimal.Decimal]
	Quantity               decimal.Decimal
	ListingTime            mo.Option[int64]
	ExpirationTime         int64
	WaitForHighestBid      bool
	PaymentTokenAddress    mo.Option[common.Address]
	ExtraBountyBasisPoints int64
	BuyerAddress           mo.Option[common.Address]
	BuyerEmail             mo.Option[string]
	NumberOfOrders         int
}

// FulfillParams identifies an order to take and who takes it.
type FulfillParams struct {
	Order          *types.Order
	AccountAddress common.Address
	// RecipientAddress receives the assets; it defaults to AccountAddress.
	RecipientAddress mo.Option[common.Address]
	ReferrerAddress  mo.Option[common.Address]
}

// ComputeFeesParams is the input of Client.ComputeFees.
type ComputeFeesParams struct {
	Asset                  *types.AssetMetadata
	Side                   types.Side
	AccountAddress         common.Address
	IsPrivate              bool
	ExtraBountyBasisPoints int64
}

// ApproveNFTParams identifies a non-fungible or semi-fungible token contract
// to approve for trading through the proxy.
type ApproveNFTParams struct {
	TokenID        *big.Int
	TokenAddress   common.Address
	AccountAddress common.Address
	// ProxyAddress defaults to the account's registered proxy.
	ProxyAddress mo.Option[common.Address]
	SchemaName   types.SchemaName
	// SkipApproveAllIfTokenAddressIn is consulted and updated before an
	// approve-all is sent. Nil uses the client's in-flight set.
	SkipApproveAllIfTokenAddressIn *AddressSet
}

// FungibleApprovalParams identifies an ERC20 allowance.
type FungibleApprovalParams struct {
	AccountAddress common.Address
	TokenAddress   common.Address
	// ProxyAddress defaults to the token transfer proxy.
	ProxyAddress mo.Option[common.Address]
	// MinimumAmount defaults to the maximum uint256.
	MinimumAmount *big.Int
}

// TransferParams moves one asset out of an account.
type TransferParams struct {
	FromAddress common.Address
	ToAddress   common.Address
	Asset       types.Asset
	// Quantity is in base units and defaults to 1.
	Quantity *big.Int
}

// TransferAllParams moves several assets through the account's proxy in one
// transaction.
type TransferAllParams struct {
	Assets      []types.Asset
	Quantities  []*big.Int
	FromAddress common.Address
	ToAddress   common.Address
}

// TransferCheckParams is the input of IsAssetTransferrable.
type TransferCheckParams struct {
	Asset       types.Asset
	FromAddress common.Address
	ToAddress   common.Address
	Quantity    *big.Int
	// UseProxy sends the transfer from the account's proxy.
	UseProxy bool
}

// FungibleTokenFilter narrows GetFungibleTokens. Empty fields match anything.
type FungibleTokenFilter struct {
	Symbol  string
	Address mo.Option[common.Address]
	Name    string
}
