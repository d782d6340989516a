package api

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// OrderQuery filters orderbook results. Unset fields are not sent.
type OrderQuery struct {
	Owner                common.Address
	Maker                common.Address
	Taker                common.Address
	AssetContractAddress common.Address
	PaymentTokenAddress  common.Address
	TokenID              *big.Int
	TokenIDs             []*big.Int
	Side                 mo.Option[types.Side]
	SaleKind             mo.Option[types.SaleKind]
	Bundled              mo.Option[bool]
	IncludeInvalid       bool
	ListedAfter          int64
	ListedBefore         int64
	Limit                int
	Offset               int
}

func setAddress(params map[string]string, key string, addr common.Address) {
	if !types.IsNull(addr) {
		params[key] = types.LowerHex(addr)
	}
}

func setPaging(params map[string]string, limit, offset int) {
	if limit > 0 {
		params["limit"] = fmt.Sprint(limit)
	}
	if offset > 0 {
		params["offset"] = fmt.Sprint(offset)
	}
}

func joinIDs(ids []*big.Int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func (q OrderQuery) params() map[string]string {
	p := make(map[string]string)
	setAddress(p, "owner", q.Owner)
	setAddress(p, "maker", q.Maker)
	setAddress(p, "taker", q.Taker)
	setAddress(p, "asset_contract_address", q.AssetContractAddress)
	setAddress(p, "payment_token_address", q.PaymentTokenAddress)
	if q.TokenID != nil {
		p["token_id"] = q.TokenID.String()
	}
	if len(q.TokenIDs) > 0 {
		p["token_ids"] = joinIDs(q.TokenIDs)
	}
	if side, ok := q.Side.Get(); ok {
		p["side"] = fmt.Sprint(uint8(side))
	}
	if kind, ok := q.SaleKind.Get(); ok {
		p["sale_kind"] = fmt.Sprint(uint8(kind))
	}
	if bundled, ok := q.Bundled.Get(); ok {
		p["bundled"] = fmt.Sprint(bundled)
	}
	if q.IncludeInvalid {
		p["include_invalid"] = "true"
	}
	if q.ListedAfter > 0 {
		p["listed_after"] = fmt.Sprint(q.ListedAfter)
	}
	if q.ListedBefore > 0 {
		p["listed_before"] = fmt.Sprint(q.ListedBefore)
	}
	setPaging(p, q.Limit, q.Offset)
	return p
}

// AssetQuery filters asset listings.
type AssetQuery struct {
	Owner                common.Address
	AssetContractAddress common.Address
	TokenIDs             []*big.Int
	Search               string
	OrderBy              string
	OrderDirection       string
	Limit                int
	Offset               int
}

func (q AssetQuery) params() map[string]string {
	p := make(map[string]string)
	setAddress(p, "owner", q.Owner)
	setAddress(p, "asset_contract_address", q.AssetContractAddress)
	if len(q.TokenIDs) > 0 {
		p["token_ids"] = joinIDs(q.TokenIDs)
	}
	if q.Search != "" {
		p["search"] = q.Search
	}
	if q.OrderBy != "" {
		p["order_by"] = q.OrderBy
	}
	if q.OrderDirection != "" {
		p["order_direction"] = q.OrderDirection
	}
	setPaging(p, q.Limit, q.Offset)
	return p
}

// TokenQuery filters payment tokens.
type TokenQuery struct {
	Symbol  string
	Address common.Address
	Name    string
}

func (q TokenQuery) params() map[string]string {
	p := make(map[string]string)
	if q.Symbol != "" {
		p["symbol"] = q.Symbol
	}
	if q.Name != "" {
		p["name"] = q.Name
	}
	setAddress(p, "address", q.Address)
	return p
}

// BundleQuery filters bundles.
type BundleQuery struct {
	Owner                common.Address
	AssetContractAddress common.Address
	TokenIDs             []*big.Int
	OnSale               mo.Option[bool]
}

func (q BundleQuery) params() map[string]string {
	p := make(map[string]string)
	setAddress(p, "owner", q.Owner)
	setAddress(p, "asset_contract_address", q.AssetContractAddress)
	if len(q.TokenIDs) > 0 {
		p["token_ids"] = joinIDs(q.TokenIDs)
	}
	if onSale, ok := q.OnSale.Get(); ok {
		p["on_sale"] = fmt.Sprint(onSale)
	}
	return p
}

// encodeParams renders params in a stable order for use as a cache key.
func encodeParams(params map[string]string) string {
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return v.Encode()
}
