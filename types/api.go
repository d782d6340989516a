package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PaymentToken is an ERC20 token accepted by the orderbook.
type PaymentToken struct {
	Name     string
	Symbol   string
	Decimals int32
	Address  common.Address
	ImageURL string
	EthPrice decimal.Decimal
	UsdPrice decimal.Decimal
}

// Collection carries the fee schedule applied to every asset it contains.
type Collection struct {
	Name                        string
	Slug                        string
	Description                 string
	CreatedDate                 time.Time
	OpenSeaBuyerFeeBasisPoints  int64
	OpenSeaSellerFeeBasisPoints int64
	DevBuyerFeeBasisPoints      int64
	DevSellerFeeBasisPoints     int64
	PayoutAddress               common.Address
	PaymentTokens               []PaymentToken
	ImageURL                    string
	ExternalLink                string
}

// AssetContract describes the token contract of an asset.
type AssetContract struct {
	Name                        string
	Address                     common.Address
	Type                        string
	SchemaName                  SchemaName
	Symbol                      string
	Description                 string
	BuyerFeeBasisPoints         int64
	SellerFeeBasisPoints        int64
	OpenSeaBuyerFeeBasisPoints  int64
	OpenSeaSellerFeeBasisPoints int64
	DevBuyerFeeBasisPoints      int64
	DevSellerFeeBasisPoints     int64
	ImageURL                    string
	ExternalLink                string
}

// Trait is a single attribute of an asset.
type Trait struct {
	TraitType   string
	Value       any
	DisplayType string
	TraitCount  int64
}

// AssetMetadata is the validated marketplace view of a single asset.
type AssetMetadata struct {
	TokenID                 *big.Int
	TokenAddress            common.Address
	Name                    string
	Description             string
	ImageURL                string
	ExternalLink            string
	Permalink               string
	AssetContract           AssetContract
	Collection              Collection
	Owner                   common.Address
	Traits                  []Trait
	NumSales                int64
	IsPresale               bool
	TransferFee             *big.Int
	TransferFeePaymentToken *PaymentToken
	SellOrders              []*Order
	BuyOrders               []*Order
}

// Asset returns the tradeable identity of the metadata record.
func (m *AssetMetadata) Asset() Asset {
	var id *big.Int
	if m.TokenID != nil {
		id = new(big.Int).Set(m.TokenID)
	}
	return Asset{
		TokenAddress: m.TokenAddress,
		TokenID:      id,
		SchemaName:   m.AssetContract.SchemaName,
		Name:         m.Name,
	}
}

// AssetBundle is a named group of assets listed together.
type AssetBundle struct {
	Maker         common.Address
	Assets        []*AssetMetadata
	Name          string
	Slug          string
	Description   string
	ExternalLink  string
	Permalink     string
	AssetContract *AssetContract
	SellOrders    []*Order
}
