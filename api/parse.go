package api

import (
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/kaifufi/wyvern-sdk-go/pricing"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

// flexString accepts a JSON string, number or null. The API is not
// consistent about quoting numeric fields.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
	default:
		*f = flexString(s)
	}
	return nil
}

type accountWire struct {
	Address string `json:"address"`
}

type tokenWire struct {
	Name     string     `json:"name"`
	Symbol   string     `json:"symbol"`
	Decimals flexString `json:"decimals"`
	Address  string     `json:"address"`
	ImageURL string     `json:"image_url"`
	EthPrice flexString `json:"eth_price"`
	UsdPrice flexString `json:"usd_price"`
}

type collectionWire struct {
	Name                        string      `json:"name"`
	Slug                        string      `json:"slug"`
	Description                 string      `json:"description"`
	CreatedDate                 string      `json:"created_date"`
	OpenSeaBuyerFeeBasisPoints  flexString  `json:"opensea_buyer_fee_basis_points"`
	OpenSeaSellerFeeBasisPoints flexString  `json:"opensea_seller_fee_basis_points"`
	DevBuyerFeeBasisPoints      flexString  `json:"dev_buyer_fee_basis_points"`
	DevSellerFeeBasisPoints     flexString  `json:"dev_seller_fee_basis_points"`
	PayoutAddress               string      `json:"payout_address"`
	PaymentTokens               []tokenWire `json:"payment_tokens"`
	ImageURL                    string      `json:"image_url"`
	ExternalURL                 string      `json:"external_url"`
}

type contractWire struct {
	Name                        string     `json:"name"`
	Address                     string     `json:"address"`
	Type                        string     `json:"asset_contract_type"`
	SchemaName                  string     `json:"schema_name"`
	Symbol                      string     `json:"symbol"`
	Description                 string     `json:"description"`
	BuyerFeeBasisPoints         flexString `json:"buyer_fee_basis_points"`
	SellerFeeBasisPoints        flexString `json:"seller_fee_basis_points"`
	OpenSeaBuyerFeeBasisPoints  flexString `json:"opensea_buyer_fee_basis_points"`
	OpenSeaSellerFeeBasisPoints flexString `json:"opensea_seller_fee_basis_points"`
	DevBuyerFeeBasisPoints      flexString `json:"dev_buyer_fee_basis_points"`
	DevSellerFeeBasisPoints     flexString `json:"dev_seller_fee_basis_points"`
	ImageURL                    string     `json:"image_url"`
	ExternalLink                string     `json:"external_link"`
}

type traitWire struct {
	TraitType   string     `json:"trait_type"`
	Value       any        `json:"value"`
	DisplayType string     `json:"display_type"`
	TraitCount  flexString `json:"trait_count"`
}

type assetWire struct {
	TokenID                 flexString      `json:"token_id"`
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	ImageURL                string          `json:"image_url"`
	ImagePreviewURL         string          `json:"image_preview_url"`
	ExternalLink            string          `json:"external_link"`
	Permalink               string          `json:"permalink"`
	AssetContract           *contractWire   `json:"asset_contract"`
	Collection              *collectionWire `json:"collection"`
	Owner                   *accountWire    `json:"owner"`
	Traits                  []traitWire     `json:"traits"`
	NumSales                flexString      `json:"num_sales"`
	IsPresale               bool            `json:"is_presale"`
	TransferFee             flexString      `json:"transfer_fee"`
	TransferFeePaymentToken *tokenWire      `json:"transfer_fee_payment_token"`
	Orders                  []orderWire     `json:"orders"`
	SellOrders              []orderWire     `json:"sell_orders"`
	BuyOrders               []orderWire     `json:"buy_orders"`
}

type bundleWire struct {
	Maker         *accountWire  `json:"maker"`
	Assets        []assetWire   `json:"assets"`
	AssetContract *contractWire `json:"asset_contract"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Description   string        `json:"description"`
	ExternalLink  string        `json:"external_link"`
	Permalink     string        `json:"permalink"`
	SellOrders    []orderWire   `json:"sell_orders"`
}

type orderWire struct {
	OrderHash     string              `json:"order_hash"`
	Hash          string              `json:"hash"`
	Cancelled     bool                `json:"cancelled"`
	Finalized     bool                `json:"finalized"`
	MarkedInvalid bool                `json:"marked_invalid"`
	Metadata      types.OrderMetadata `json:"metadata"`
	Quantity      flexString          `json:"quantity"`
	Exchange      string              `json:"exchange"`
	Maker         *accountWire        `json:"maker"`
	Taker         *accountWire        `json:"taker"`
	FeeRecipient  *accountWire        `json:"fee_recipient"`

	MakerRelayerFee  flexString `json:"maker_relayer_fee"`
	TakerRelayerFee  flexString `json:"taker_relayer_fee"`
	MakerProtocolFee flexString `json:"maker_protocol_fee"`
	TakerProtocolFee flexString `json:"taker_protocol_fee"`
	MakerReferrerFee flexString `json:"maker_referrer_fee"`

	FeeMethod types.FeeMethod `json:"fee_method"`
	Side      types.Side      `json:"side"`
	SaleKind  types.SaleKind  `json:"sale_kind"`
	HowToCall types.HowToCall `json:"how_to_call"`

	Target             string `json:"target"`
	Calldata           string `json:"calldata"`
	ReplacementPattern string `json:"replacement_pattern"`
	StaticTarget       string `json:"static_target"`
	StaticExtradata    string `json:"static_extradata"`
	PaymentToken       string `json:"payment_token"`

	BasePrice      flexString `json:"base_price"`
	Extra          flexString `json:"extra"`
	CurrentBounty  flexString `json:"current_bounty"`
	CreatedDate    string     `json:"created_date"`
	ListingTime    flexString `json:"listing_time"`
	ExpirationTime flexString `json:"expiration_time"`
	Salt           flexString `json:"salt"`

	V *int   `json:"v"`
	R string `json:"r"`
	S string `json:"s"`

	PaymentTokenContract *tokenWire  `json:"payment_token_contract"`
	Asset                *assetWire  `json:"asset"`
	AssetBundle          *bundleWire `json:"asset_bundle"`
}

// parser converts wire records into typed ones, keeping the first failure.
type parser struct {
	path  string
	state *parseState
	now   time.Time
}

type parseState struct {
	err *ParseError
}

func newParser(root string, now time.Time) *parser {
	return &parser{path: root, state: &parseState{}, now: now}
}

func (p *parser) sub(name string) *parser {
	return &parser{path: p.path + "." + name, state: p.state, now: p.now}
}

func (p *parser) field(name string) string {
	return p.path + "." + name
}

func (p *parser) fail(field, reason string) {
	if p.state.err == nil {
		p.state.err = &ParseError{Field: p.field(field), Reason: reason}
	}
}

func (p *parser) failed() bool { return p.state.err != nil }

func (p *parser) Err() error {
	if p.state.err == nil {
		return nil
	}
	return p.state.err
}

func (p *parser) address(field, s string) common.Address {
	if !common.IsHexAddress(s) {
		if s == "" {
			p.fail(field, "is missing")
		} else {
			p.fail(field, "is not an address")
		}
		return types.NullAddress
	}
	return common.HexToAddress(s)
}

func (p *parser) optAddress(field, s string) common.Address {
	if s == "" {
		return types.NullAddress
	}
	return p.address(field, s)
}

func (p *parser) account(field string, a *accountWire) common.Address {
	if a == nil {
		p.fail(field, "is missing")
		return types.NullAddress
	}
	return p.address(field+".address", a.Address)
}

// bigInt parses a non-negative integer. An empty value yields def, or fails
// when def is nil.
func (p *parser) bigInt(field string, s flexString, def *big.Int) *big.Int {
	if s == "" {
		if def == nil {
			p.fail(field, "is missing")
			return nil
		}
		return new(big.Int).Set(def)
	}
	// Large integers are sometimes rendered in exponent form.
	d, err := decimal.NewFromString(string(s))
	if err != nil || d.IsNegative() || !d.Equal(d.Truncate(0)) {
		p.fail(field, "is not a non-negative integer")
		return nil
	}
	return d.BigInt()
}

func (p *parser) integer(field string, s flexString) int64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		p.fail(field, "is not a number")
		return 0
	}
	return d.IntPart()
}

func (p *parser) amount(field string, s flexString) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		p.fail(field, "is not a number")
		return decimal.Zero
	}
	return d
}

func (p *parser) bytes(field, s string) []byte {
	if s == "" || s == "0x" {
		return []byte{}
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		p.fail(field, "is not hex data")
		return nil
	}
	return b
}

func (p *parser) hash(field, s string) common.Hash {
	b := p.bytes(field, s)
	if !p.failed() && len(b) != common.HashLength {
		p.fail(field, "is not a 32 byte hash")
	}
	return common.BytesToHash(b)
}

// API timestamps are UTC without a zone suffix.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"}

func (p *parser) timestamp(field, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	p.fail(field, "is not a timestamp")
	return time.Time{}
}

func (p *parser) token(w *tokenWire) types.PaymentToken {
	return types.PaymentToken{
		Name:     w.Name,
		Symbol:   w.Symbol,
		Decimals: int32(p.integer("decimals", w.Decimals)),
		Address:  p.address("address", w.Address),
		ImageURL: w.ImageURL,
		EthPrice: p.amount("eth_price", w.EthPrice),
		UsdPrice: p.amount("usd_price", w.UsdPrice),
	}
}

func (p *parser) collection(w *collectionWire) types.Collection {
	c := types.Collection{
		Name:                        w.Name,
		Slug:                        w.Slug,
		Description:                 w.Description,
		CreatedDate:                 p.timestamp("created_date", w.CreatedDate),
		OpenSeaBuyerFeeBasisPoints:  p.integer("opensea_buyer_fee_basis_points", w.OpenSeaBuyerFeeBasisPoints),
		OpenSeaSellerFeeBasisPoints: p.integer("opensea_seller_fee_basis_points", w.OpenSeaSellerFeeBasisPoints),
		DevBuyerFeeBasisPoints:      p.integer("dev_buyer_fee_basis_points", w.DevBuyerFeeBasisPoints),
		DevSellerFeeBasisPoints:     p.integer("dev_seller_fee_basis_points", w.DevSellerFeeBasisPoints),
		PayoutAddress:               p.optAddress("payout_address", w.PayoutAddress),
		ImageURL:                    w.ImageURL,
		ExternalLink:                w.ExternalURL,
	}
	for i := range w.PaymentTokens {
		c.PaymentTokens = append(c.PaymentTokens, p.sub("payment_tokens").token(&w.PaymentTokens[i]))
	}
	return c
}

func (p *parser) contract(w *contractWire) types.AssetContract {
	schema, err := types.ParseSchemaName(w.SchemaName)
	if err != nil {
		schema = types.SchemaUnknown
	}
	return types.AssetContract{
		Name:                        w.Name,
		Address:                     p.address("address", w.Address),
		Type:                        w.Type,
		SchemaName:                  schema,
		Symbol:                      w.Symbol,
		Description:                 w.Description,
		BuyerFeeBasisPoints:         p.integer("buyer_fee_basis_points", w.BuyerFeeBasisPoints),
		SellerFeeBasisPoints:        p.integer("seller_fee_basis_points", w.SellerFeeBasisPoints),
		OpenSeaBuyerFeeBasisPoints:  p.integer("opensea_buyer_fee_basis_points", w.OpenSeaBuyerFeeBasisPoints),
		OpenSeaSellerFeeBasisPoints: p.integer("opensea_seller_fee_basis_points", w.OpenSeaSellerFeeBasisPoints),
		DevBuyerFeeBasisPoints:      p.integer("dev_buyer_fee_basis_points", w.DevBuyerFeeBasisPoints),
		DevSellerFeeBasisPoints:     p.integer("dev_seller_fee_basis_points", w.DevSellerFeeBasisPoints),
		ImageURL:                    w.ImageURL,
		ExternalLink:                w.ExternalLink,
	}
}

func (p *parser) orders(field string, ws []orderWire) []*types.Order {
	if ws == nil {
		return nil
	}
	out := make([]*types.Order, 0, len(ws))
	for i := range ws {
		out = append(out, p.sub(field).order(&ws[i]))
	}
	return out
}

func (p *parser) asset(w *assetWire) *types.AssetMetadata {
	if w.AssetContract == nil {
		p.fail("asset_contract", "is missing")
		return nil
	}
	contract := p.sub("asset_contract").contract(w.AssetContract)
	m := &types.AssetMetadata{
		TokenID:       p.bigInt("token_id", w.TokenID, nil),
		TokenAddress:  contract.Address,
		Name:          w.Name,
		Description:   w.Description,
		ImageURL:      w.ImageURL,
		ExternalLink:  w.ExternalLink,
		Permalink:     w.Permalink,
		AssetContract: contract,
		NumSales:      p.integer("num_sales", w.NumSales),
		IsPresale:     w.IsPresale,
		SellOrders:    p.orders("sell_orders", w.SellOrders),
		BuyOrders:     p.orders("buy_orders", w.BuyOrders),
	}
	if !strings.HasSuffix(w.ImageURL, ".gif") && !strings.HasSuffix(w.ImageURL, ".svg") && w.ImagePreviewURL != "" {
		m.ImageURL = w.ImagePreviewURL
	}
	if w.Collection != nil {
		m.Collection = p.sub("collection").collection(w.Collection)
	}
	if w.Owner != nil {
		m.Owner = p.optAddress("owner.address", w.Owner.Address)
	}
	for _, t := range w.Traits {
		m.Traits = append(m.Traits, types.Trait{
			TraitType:   t.TraitType,
			Value:       t.Value,
			DisplayType: t.DisplayType,
			TraitCount:  p.integer("traits.trait_count", t.TraitCount),
		})
	}
	if w.TransferFee != "" {
		m.TransferFee = p.bigInt("transfer_fee", w.TransferFee, nil)
	}
	if w.TransferFeePaymentToken != nil {
		tok := p.sub("transfer_fee_payment_token").token(w.TransferFeePaymentToken)
		m.TransferFeePaymentToken = &tok
	}

	if all := p.orders("orders", w.Orders); all != nil {
		for _, o := range all {
			if o == nil {
				continue
			}
			if o.Side == types.SideSell && w.SellOrders == nil {
				m.SellOrders = append(m.SellOrders, o)
			}
			if o.Side == types.SideBuy && w.BuyOrders == nil {
				m.BuyOrders = append(m.BuyOrders, o)
			}
		}
	}
	return m
}

func (p *parser) bundle(w *bundleWire) *types.AssetBundle {
	b := &types.AssetBundle{
		Name:         w.Name,
		Slug:         w.Slug,
		Description:  w.Description,
		ExternalLink: w.ExternalLink,
		Permalink:    w.Permalink,
		SellOrders:   p.orders("sell_orders", w.SellOrders),
	}
	if w.Maker != nil {
		b.Maker = p.optAddress("maker.address", w.Maker.Address)
	}
	for i := range w.Assets {
		b.Assets = append(b.Assets, p.sub("assets").asset(&w.Assets[i]))
	}
	if w.AssetContract != nil {
		c := p.sub("asset_contract").contract(w.AssetContract)
		b.AssetContract = &c
	}
	return b
}

func (p *parser) order(w *orderWire) *types.Order {
	hash := w.OrderHash
	if hash == "" {
		hash = w.Hash
	}
	o := &types.Order{}
	o.Hash = p.hash("order_hash", hash)
	o.CancelledOrFinalized = w.Cancelled || w.Finalized
	o.MarkedInvalid = w.MarkedInvalid
	o.Metadata = w.Metadata
	o.Quantity = p.bigInt("quantity", w.Quantity, big.NewInt(1))
	o.Exchange = p.address("exchange", w.Exchange)
	o.Maker = p.account("maker", w.Maker)
	o.Taker = p.account("taker", w.Taker)
	o.FeeRecipient = p.account("fee_recipient", w.FeeRecipient)
	o.WaitingForBestCounterOrder = types.IsNull(o.FeeRecipient)
	o.MakerRelayerFee = p.bigInt("maker_relayer_fee", w.MakerRelayerFee, nil)
	o.TakerRelayerFee = p.bigInt("taker_relayer_fee", w.TakerRelayerFee, nil)
	o.MakerProtocolFee = p.bigInt("maker_protocol_fee", w.MakerProtocolFee, nil)
	o.TakerProtocolFee = p.bigInt("taker_protocol_fee", w.TakerProtocolFee, nil)
	o.MakerReferrerFee = p.bigInt("maker_referrer_fee", w.MakerReferrerFee, new(big.Int))
	o.FeeMethod = w.FeeMethod
	o.Side = w.Side
	o.SaleKind = w.SaleKind
	o.HowToCall = w.HowToCall
	o.Target = p.address("target", w.Target)
	o.Calldata = p.bytes("calldata", w.Calldata)
	o.ReplacementPattern = p.bytes("replacement_pattern", w.ReplacementPattern)
	o.StaticTarget = p.optAddress("static_target", w.StaticTarget)
	o.StaticExtradata = p.bytes("static_extradata", w.StaticExtradata)
	o.PaymentToken = p.optAddress("payment_token", w.PaymentToken)
	o.BasePrice = p.bigInt("base_price", w.BasePrice, nil)
	o.Extra = p.bigInt("extra", w.Extra, new(big.Int))
	o.CurrentBounty = p.bigInt("current_bounty", w.CurrentBounty, new(big.Int))
	o.ListingTime = p.bigInt("listing_time", w.ListingTime, nil)
	o.ExpirationTime = p.bigInt("expiration_time", w.ExpirationTime, nil)
	o.Salt = p.bigInt("salt", w.Salt, nil)
	if created := p.timestamp("created_date", w.CreatedDate); !created.IsZero() {
		o.CreatedTime = big.NewInt(created.Unix())
	}
	if w.V != nil && w.R != "" && w.S != "" {
		o.Signature = &types.ECSignature{
			V: uint8(*w.V),
			R: p.hash("r", w.R),
			S: p.hash("s", w.S),
		}
	}
	if w.PaymentTokenContract != nil {
		tok := p.sub("payment_token_contract").token(w.PaymentTokenContract)
		o.PaymentTokenContract = &tok
	}
	if w.Asset != nil {
		o.Asset = p.sub("asset").asset(w.Asset)
	}
	if w.AssetBundle != nil {
		o.AssetBundle = p.sub("asset_bundle").bundle(w.AssetBundle)
	}
	if p.failed() {
		return nil
	}
	// The server price omits the buyer fee and lags; recompute locally.
	o.CurrentPrice = pricing.CurrentPrice(&o.UnhashedOrder, p.now)
	return o
}

func parseOrder(w *orderWire, now time.Time) (*types.Order, error) {
	p := newParser("order", now)
	o := p.order(w)
	return o, p.Err()
}

func parseAsset(w *assetWire, now time.Time) (*types.AssetMetadata, error) {
	p := newParser("asset", now)
	a := p.asset(w)
	return a, p.Err()
}

func parseBundle(w *bundleWire, now time.Time) (*types.AssetBundle, error) {
	p := newParser("bundle", now)
	b := p.bundle(w)
	return b, p.Err()
}

func parseToken(w *tokenWire) (types.PaymentToken, error) {
	p := newParser("token", time.Time{})
	t := p.token(w)
	return t, p.Err()
}
