package wyvern

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/pricing"
	"github.com/kaifufi/wyvern-sdk-go/schema"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

// ComputeFees returns the fee split of an order on the asset. Sell orders
// of Enjin items also carry the item's transfer fee, read from the contract
// when possible.
func (c *Client) ComputeFees(ctx context.Context, p ComputeFeesParams) (pricing.Fees, error) {
	fees, err := pricing.ComputeFees(pricing.FeeParams{
		Asset:                  p.Asset,
		Side:                   p.Side,
		IsPrivate:              p.IsPrivate,
		ExtraBountyBasisPoints: p.ExtraBountyBasisPoints,
	})
	if err != nil {
		return pricing.Fees{}, asValidation(err)
	}
	if p.Side != types.SideSell || p.Asset == nil || p.Asset.TokenAddress != types.EnjinAddress {
		return fees, nil
	}

	settings, err := chain.GetTransferSettings(ctx, c.reads, p.Asset.TokenAddress, p.AccountAddress, p.Asset.TokenID)
	if err != nil {
		c.log.WithError(err).Warn("transfer settings lookup failed, using the listed transfer fee")
		return fees, nil
	}
	fees.TransferFee = settings.FeeValue
	if settings.TransferFeeType == 0 {
		fees.TransferFeeTokenAddress = mo.Some(types.EnjinCoinAddress)
	}
	return fees, nil
}

// staticCall returns the static call hook of a sell order. English auctions
// may only be settled by the marketplace matcher.
func (c *Client) staticCall(useTxOrigin bool) (common.Address, []byte) {
	if !useTxOrigin {
		return types.NullAddress, []byte{}
	}
	return c.contracts.StaticCallTxOrigin, chain.StaticCheckTxOriginExtradata()
}

// paymentTokenRecord finds the token record of a payment token. Ether has no
// record.
func (c *Client) paymentTokenRecord(ctx context.Context, token common.Address) (*types.PaymentToken, error) {
	if types.IsNull(token) {
		return nil, nil
	}
	tokens, err := c.GetFungibleTokens(ctx, FungibleTokenFilter{Address: mo.Some(token)})
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return &tokens[0], nil
}

func (c *Client) priceParameters(ctx context.Context, p pricing.PriceParams) (pricing.Prices, error) {
	token, err := c.paymentTokenRecord(ctx, p.PaymentToken)
	if err != nil {
		return pricing.Prices{}, err
	}
	p.Token = token
	prices, err := pricing.PriceParameters(p)
	if err != nil {
		return pricing.Prices{}, asValidation(err)
	}
	return prices, nil
}

func quantityOrDefault(q decimal.Decimal) decimal.Decimal {
	if q.IsZero() {
		return decimal.NewFromInt(1)
	}
	return q
}

// sellTerms are the pricing inputs shared by single-asset and bundle
// listings.
type sellTerms struct {
	account                    common.Address
	startAmount                decimal.Decimal
	endAmount                  mo.Option[decimal.Decimal]
	listingTime                mo.Option[int64]
	expirationTime             int64
	waitForHighestBid          bool
	englishAuctionReservePrice mo.Option[decimal.Decimal]
	paymentToken               common.Address
}

// applySellTerms fills the price, time and fee fields of a sell order.
func (c *Client) applySellTerms(ctx context.Context, o *types.UnhashedOrder, t sellTerms, fees pricing.Fees) error {
	o.SaleKind = pricing.SaleKindFor(t.startAmount, t.endAmount)

	prices, err := c.priceParameters(ctx, pricing.PriceParams{
		Side:                       types.SideSell,
		PaymentToken:               t.paymentToken,
		ExpirationTime:             t.expirationTime,
		StartAmount:                t.startAmount,
		EndAmount:                  t.endAmount,
		WaitingForBestCounterOrder: t.waitForHighestBid,
		EnglishAuctionReservePrice: t.englishAuctionReservePrice,
	})
	if err != nil {
		return err
	}
	times, err := pricing.TimeParameters(c.now(), t.expirationTime, t.listingTime, t.waitForHighestBid)
	if err != nil {
		return asValidation(err)
	}
	feeParams, err := pricing.SellFeeParameters(fees.TotalBuyerFeeBasisPoints, fees.TotalSellerFeeBasisPoints, t.waitForHighestBid, fees.SellerBountyBasisPoints)
	if err != nil {
		return asValidation(err)
	}

	feeParams.Apply(o)
	o.Exchange = c.contracts.Exchange
	o.Maker = t.account
	o.Side = types.SideSell
	o.WaitingForBestCounterOrder = t.waitForHighestBid
	o.PaymentToken = prices.PaymentToken
	o.BasePrice = prices.BasePrice
	o.Extra = prices.Extra
	o.EnglishAuctionReservePrice = prices.ReservePrice
	o.ListingTime = times.ListingTime
	o.ExpirationTime = times.ExpirationTime
	o.Salt = newSalt()
	return nil
}

func (c *Client) makeSellOrder(ctx context.Context, p SellOrderParams) (*types.UnhashedOrder, error) {
	quantity, err := pricing.ToBaseUnits(quantityOrDefault(p.Quantity), p.Asset.Decimals)
	if err != nil {
		return nil, asValidation(err)
	}
	enc, err := schemaFor(p.Asset.SchemaName)
	if err != nil {
		return nil, err
	}
	wy := enc.AssetFromFields(p.Asset, quantity)
	buyer := p.BuyerAddress.OrElse(types.NullAddress)

	metadata, err := c.api.GetAsset(ctx, p.Asset.TokenAddress, p.Asset.TokenID)
	if err != nil {
		return nil, err
	}
	fees, err := c.ComputeFees(ctx, ComputeFeesParams{
		Asset:                  metadata,
		Side:                   types.SideSell,
		AccountAddress:         p.AccountAddress,
		IsPrivate:              !types.IsNull(buyer),
		ExtraBountyBasisPoints: p.ExtraBountyBasisPoints,
	})
	if err != nil {
		return nil, err
	}
	encoded, err := schema.EncodeSell(enc, wy, p.AccountAddress)
	if err != nil {
		return nil, asValidation(err)
	}

	o := types.NewUnhashedOrder()
	err = c.applySellTerms(ctx, &o, sellTerms{
		account:                    p.AccountAddress,
		startAmount:                p.StartAmount,
		endAmount:                  p.EndAmount,
		listingTime:                p.ListingTime,
		expirationTime:             p.ExpirationTime,
		waitForHighestBid:          p.WaitForHighestBid,
		englishAuctionReservePrice: p.EnglishAuctionReservePrice,
		paymentToken:               p.PaymentTokenAddress.OrElse(types.NullAddress),
	}, fees)
	if err != nil {
		return nil, err
	}

	o.Taker = buyer
	o.Quantity = quantity
	o.Target = encoded.Target
	o.HowToCall = types.HowToCallCall
	o.Calldata = encoded.Calldata
	o.ReplacementPattern = encoded.ReplacementPattern
	o.StaticTarget, o.StaticExtradata = c.staticCall(p.WaitForHighestBid)
	o.Metadata = types.OrderMetadata{Asset: &wy, Schema: enc.Name()}
	return &o, nil
}

func (c *Client) makeBundleSellOrder(ctx context.Context, p BundleSellOrderParams) (*types.UnhashedOrder, error) {
	bundle, err := c.wyvernBundle(p.Assets, p.Quantities)
	if err != nil {
		return nil, err
	}
	bundle.Name = p.BundleName
	bundle.Description = p.BundleDescription
	bundle.ExternalLink = p.BundleExternalLink
	encs, err := schema.ForSchemas(bundle.Schemas)
	if err != nil {
		return nil, asValidation(err)
	}
	buyer := p.BuyerAddress.OrElse(types.NullAddress)

	metadata, err := c.collectionAsset(ctx, p.Collection, p.Assets)
	if err != nil {
		return nil, err
	}
	fees, err := c.ComputeFees(ctx, ComputeFeesParams{
		Asset:                  metadata,
		Side:                   types.SideSell,
		AccountAddress:         p.AccountAddress,
		IsPrivate:              !types.IsNull(buyer),
		ExtraBountyBasisPoints: p.ExtraBountyBasisPoints,
	})
	if err != nil {
		return nil, err
	}
	encoded, err := schema.EncodeAtomicizedSell(encs, bundle.Assets, p.AccountAddress, c.contracts.Atomicizer)
	if err != nil {
		return nil, asValidation(err)
	}

	o := types.NewUnhashedOrder()
	err = c.applySellTerms(ctx, &o, sellTerms{
		account:                    p.AccountAddress,
		startAmount:                p.StartAmount,
		endAmount:                  p.EndAmount,
		listingTime:                p.ListingTime,
		expirationTime:             p.ExpirationTime,
		waitForHighestBid:          p.WaitForHighestBid,
		englishAuctionReservePrice: p.EnglishAuctionReservePrice,
		paymentToken:               p.PaymentTokenAddress.OrElse(types.NullAddress),
	}, fees)
	if err != nil {
		return nil, err
	}

	o.Taker = buyer
	o.Quantity = big.NewInt(1)
	o.Target = c.contracts.Atomicizer
	o.HowToCall = types.HowToCallDelegateCall
	o.Calldata = encoded.Calldata
	o.ReplacementPattern = encoded.ReplacementPattern
	o.StaticTarget, o.StaticExtradata = types.NullAddress, []byte{}
	o.Metadata = types.OrderMetadata{Bundle: bundle}
	return &o, nil
}

// buyTerms are the inputs shared by single-asset and bundle offers.
type buyTerms struct {
	account         common.Address
	startAmount     decimal.Decimal
	expirationTime  int64
	paymentToken    common.Address
	sellOrder       *types.Order
	referrerAddress mo.Option[common.Address]
}

func (c *Client) applyBuyTerms(ctx context.Context, o *types.UnhashedOrder, t buyTerms, fees pricing.Fees) error {
	feeParams, err := pricing.BuyFeeParameters(fees.TotalBuyerFeeBasisPoints, fees.TotalSellerFeeBasisPoints, t.sellOrder)
	if err != nil {
		return asValidation(err)
	}
	prices, err := c.priceParameters(ctx, pricing.PriceParams{
		Side:           types.SideBuy,
		PaymentToken:   t.paymentToken,
		ExpirationTime: t.expirationTime,
		StartAmount:    t.startAmount,
	})
	if err != nil {
		return err
	}
	times, err := pricing.TimeParameters(c.now(), t.expirationTime, mo.None[int64](), false)
	if err != nil {
		return asValidation(err)
	}

	feeParams.Apply(o)
	o.Exchange = c.contracts.Exchange
	o.Maker = t.account
	o.Taker = types.NullAddress
	if t.sellOrder != nil {
		o.Taker = t.sellOrder.Maker
	}
	o.Side = types.SideBuy
	o.SaleKind = types.SaleKindFixedPrice
	o.PaymentToken = prices.PaymentToken
	o.BasePrice = prices.BasePrice
	o.Extra = prices.Extra
	o.ListingTime = times.ListingTime
	o.ExpirationTime = times.ExpirationTime
	o.Salt = newSalt()
	if ref, ok := t.referrerAddress.Get(); ok {
		o.Metadata.ReferrerAddress = types.LowerHex(ref)
	}
	return nil
}

func (c *Client) makeBuyOrder(ctx context.Context, p BuyOrderParams) (*types.UnhashedOrder, error) {
	quantity, err := pricing.ToBaseUnits(quantityOrDefault(p.Quantity), p.Asset.Decimals)
	if err != nil {
		return nil, asValidation(err)
	}
	enc, err := schemaFor(p.Asset.SchemaName)
	if err != nil {
		return nil, err
	}
	wy := enc.AssetFromFields(p.Asset, quantity)

	metadata, err := c.api.GetAsset(ctx, p.Asset.TokenAddress, p.Asset.TokenID)
	if err != nil {
		return nil, err
	}
	fees, err := c.ComputeFees(ctx, ComputeFeesParams{Asset: metadata, Side: types.SideBuy, AccountAddress: p.AccountAddress})
	if err != nil {
		return nil, err
	}
	encoded, err := schema.EncodeBuy(enc, wy, p.AccountAddress)
	if err != nil {
		return nil, asValidation(err)
	}

	o := types.NewUnhashedOrder()
	err = c.applyBuyTerms(ctx, &o, buyTerms{
		account:         p.AccountAddress,
		startAmount:     p.StartAmount,
		expirationTime:  p.ExpirationTime,
		paymentToken:    p.PaymentTokenAddress.OrElse(c.contracts.WETH),
		sellOrder:       p.SellOrder.OrElse(nil),
		referrerAddress: p.ReferrerAddress,
	}, fees)
	if err != nil {
		return nil, err
	}

	o.Quantity = quantity
	o.Target = encoded.Target
	o.HowToCall = types.HowToCallCall
	o.Calldata = encoded.Calldata
	o.ReplacementPattern = encoded.ReplacementPattern
	o.Metadata.Asset = &wy
	o.Metadata.Schema = enc.Name()
	return &o, nil
}

func (c *Client) makeBundleBuyOrder(ctx context.Context, p BundleBuyOrderParams) (*types.UnhashedOrder, error) {
	bundle, err := c.wyvernBundle(p.Assets, p.Quantities)
	if err != nil {
		return nil, err
	}
	encs, err := schema.ForSchemas(bundle.Schemas)
	if err != nil {
		return nil, asValidation(err)
	}

	metadata, err := c.collectionAsset(ctx, p.Collection, p.Assets)
	if err != nil {
		return nil, err
	}
	fees, err := c.ComputeFees(ctx, ComputeFeesParams{Asset: metadata, Side: types.SideBuy, AccountAddress: p.AccountAddress})
	if err != nil {
		return nil, err
	}
	encoded, err := schema.EncodeAtomicizedBuy(encs, bundle.Assets, p.AccountAddress, c.contracts.Atomicizer)
	if err != nil {
		return nil, asValidation(err)
	}

	o := types.NewUnhashedOrder()
	err = c.applyBuyTerms(ctx, &o, buyTerms{
		account:         p.AccountAddress,
		startAmount:     p.StartAmount,
		expirationTime:  p.ExpirationTime,
		paymentToken:    p.PaymentTokenAddress.OrElse(c.contracts.WETH),
		sellOrder:       p.SellOrder.OrElse(nil),
		referrerAddress: p.ReferrerAddress,
	}, fees)
	if err != nil {
		return nil, err
	}

	o.Quantity = big.NewInt(1)
	o.Target = c.contracts.Atomicizer
	o.HowToCall = types.HowToCallDelegateCall
	o.Calldata = encoded.Calldata
	o.ReplacementPattern = encoded.ReplacementPattern
	o.Metadata.Bundle = bundle
	return &o, nil
}

// wyvernBundle projects assets and whole-unit quantities, defaulting to one
// of each, into a bundle.
func (c *Client) wyvernBundle(assets []types.Asset, quantities []decimal.Decimal) (*types.Bundle, error) {
	if len(assets) == 0 {
		return nil, &ValidationError{Message: "Bundle must contain at least one asset"}
	}
	if quantities == nil {
		quantities = make([]decimal.Decimal, len(assets))
	}
	if len(quantities) != len(assets) {
		return nil, &ValidationError{Message: "Bundle must have a quantity for every asset"}
	}
	base := make([]*big.Int, len(assets))
	for i, a := range assets {
		q, err := pricing.ToBaseUnits(quantityOrDefault(quantities[i]), a.Decimals)
		if err != nil {
			return nil, asValidation(err)
		}
		base[i] = q
	}
	bundle, err := types.NewWyvernBundle(assets, base)
	if err != nil {
		return nil, asValidation(err)
	}
	return bundle, nil
}

// collectionAsset returns the metadata of the first asset when the bundle is
// from a single collection, so the collection's fees apply. Otherwise the
// default fees apply and it returns nil.
func (c *Client) collectionAsset(ctx context.Context, collection mo.Option[string], assets []types.Asset) (*types.AssetMetadata, error) {
	if collection.IsAbsent() || len(assets) == 0 {
		return nil, nil
	}
	return c.api.GetAsset(ctx, assets[0].TokenAddress, assets[0].TokenID)
}

// makeMatchingOrder builds the counter order that account would sign to
// take order, sending any assets bought to recipient.
func (c *Client) makeMatchingOrder(order *types.Order, account, recipient common.Address) (*types.Order, error) {
	var encoded schema.Encoded
	switch {
	case order.Metadata.Asset != nil:
		enc, err := schemaFor(order.Metadata.Schema)
		if err != nil {
			return nil, err
		}
		if order.Side == types.SideBuy {
			encoded, err = schema.EncodeSell(enc, *order.Metadata.Asset, recipient)
		} else {
			encoded, err = schema.EncodeBuy(enc, *order.Metadata.Asset, recipient)
		}
		if err != nil {
			return nil, asValidation(err)
		}
	case order.Metadata.Bundle != nil:
		bundle := order.Metadata.Bundle
		encs, err := schema.ForSchemas(bundle.Schemas)
		if err != nil {
			return nil, asValidation(err)
		}
		if order.Side == types.SideBuy {
			encoded, err = schema.EncodeAtomicizedSell(encs, bundle.Assets, recipient, c.contracts.Atomicizer)
		} else {
			encoded, err = schema.EncodeAtomicizedBuy(encs, bundle.Assets, recipient, c.contracts.Atomicizer)
		}
		if err != nil {
			return nil, asValidation(err)
		}
	default:
		return nil, &ValidationError{Message: "Invalid order metadata"}
	}

	times, err := pricing.TimeParameters(c.now(), 0, mo.None[int64](), false)
	if err != nil {
		return nil, asValidation(err)
	}
	// The counter order pays the fee recipient only when the order does not.
	feeRecipient := types.NullAddress
	if types.IsNull(order.FeeRecipient) {
		feeRecipient = types.OpenSeaFeeRecipient
	}

	m := types.NewUnhashedOrder()
	m.Exchange = order.Exchange
	m.Maker = account
	m.Taker = order.Maker
	m.Quantity = order.Quantity
	m.MakerRelayerFee = order.MakerRelayerFee
	m.TakerRelayerFee = order.TakerRelayerFee
	m.MakerProtocolFee = order.MakerProtocolFee
	m.TakerProtocolFee = order.TakerProtocolFee
	m.MakerReferrerFee = order.MakerReferrerFee
	m.FeeMethod = order.FeeMethod
	m.FeeRecipient = feeRecipient
	m.Side = order.Side.Opposite()
	m.SaleKind = types.SaleKindFixedPrice
	m.Target = encoded.Target
	m.HowToCall = order.HowToCall
	m.Calldata = encoded.Calldata
	m.ReplacementPattern = encoded.ReplacementPattern
	m.StaticTarget = types.NullAddress
	m.StaticExtradata = []byte{}
	m.PaymentToken = order.PaymentToken
	m.BasePrice = order.BasePrice
	m.Extra = new(big.Int)
	m.ListingTime = times.ListingTime
	m.ExpirationTime = times.ExpirationTime
	m.Salt = newSalt()
	m.Metadata = order.Metadata

	return &types.Order{UnhashedOrder: m, Hash: chain.HashOrder(&m)}, nil
}
