package wyvern

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/pricing"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

const (
	declinedAuction = "You declined to authorize your auction"
	declinedOffer   = "You declined to authorize your offer"
	declinedFactory = "You declined to authorize your auction, or your web3 provider can't sign using personal_sign. " +
		"Try 'web3-provider-engine' and make sure a mnemonic is set. Just a reminder: there's no gas needed anymore to mint tokens!"
)

// CreateSellOrder lists an asset: it checks ownership and approvals, signs
// the order and posts it to the orderbook.
func (c *Client) CreateSellOrder(ctx context.Context, p SellOrderParams) (*types.Order, error) {
	unhashed, err := c.makeSellOrder(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := c.sellOrderValidationAndApprovals(ctx, unhashed, p.AccountAddress); err != nil {
		return nil, err
	}
	if email, ok := p.BuyerEmail.Get(); ok {
		if err := c.createEmailWhitelistEntry(ctx, unhashed, email); err != nil {
			return nil, err
		}
	}
	order, err := c.hashAndAuthorize(ctx, unhashed, declinedAuction)
	if err != nil {
		return nil, err
	}
	return c.ValidateAndPostOrder(ctx, order)
}

// CreateBuyOrder makes an offer on an asset, paid in WETH unless another
// token is given.
func (c *Client) CreateBuyOrder(ctx context.Context, p BuyOrderParams) (*types.Order, error) {
	unhashed, err := c.makeBuyOrder(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := c.buyOrderValidationAndApprovals(ctx, unhashed, nil, p.AccountAddress); err != nil {
		return nil, err
	}
	order, err := c.hashAndAuthorize(ctx, unhashed, declinedOffer)
	if err != nil {
		return nil, err
	}
	return c.ValidateAndPostOrder(ctx, order)
}

// CreateBundleSellOrder lists several assets to be sold together.
func (c *Client) CreateBundleSellOrder(ctx context.Context, p BundleSellOrderParams) (*types.Order, error) {
	unhashed, err := c.makeBundleSellOrder(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := c.sellOrderValidationAndApprovals(ctx, unhashed, p.AccountAddress); err != nil {
		return nil, err
	}
	order, err := c.hashAndAuthorize(ctx, unhashed, declinedAuction)
	if err != nil {
		return nil, err
	}
	return c.ValidateAndPostOrder(ctx, order)
}

// CreateBundleBuyOrder makes an offer on several assets together.
func (c *Client) CreateBundleBuyOrder(ctx context.Context, p BundleBuyOrderParams) (*types.Order, error) {
	unhashed, err := c.makeBundleBuyOrder(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := c.buyOrderValidationAndApprovals(ctx, unhashed, nil, p.AccountAddress); err != nil {
		return nil, err
	}
	order, err := c.hashAndAuthorize(ctx, unhashed, declinedOffer)
	if err != nil {
		return nil, err
	}
	return c.ValidateAndPostOrder(ctx, order)
}

// CreateFactorySellOrders posts NumberOfOrders listings of every asset, all
// of which must share a contract. Orders are created in parallel batches and
// it returns how many were posted.
func (c *Client) CreateFactorySellOrders(ctx context.Context, p FactorySellOrderParams) (int, error) {
	if p.NumberOfOrders < 1 {
		return 0, &ValidationError{Message: "Need to make at least one sell order"}
	}
	if len(p.Assets) == 0 {
		return 0, &ValidationError{Message: "Need at least one asset to create orders for"}
	}
	for _, a := range p.Assets[1:] {
		if a.TokenAddress != p.Assets[0].TokenAddress {
			return 0, &ValidationError{Message: "All assets must be on the same factory contract address"}
		}
	}

	sellParams := func(asset types.Asset) SellOrderParams {
		return SellOrderParams{
			Asset:                  asset,
			AccountAddress:         p.AccountAddress,
			StartAmount:            p.StartAmount,
			EndAmount:              p.EndAmount,
			Quantity:               p.Quantity,
			ListingTime:            p.ListingTime,
			ExpirationTime:         p.ExpirationTime,
			WaitForHighestBid:      p.WaitForHighestBid,
			PaymentTokenAddress:    p.PaymentTokenAddress,
			ExtraBountyBasisPoints: p.ExtraBountyBasisPoints,
			BuyerAddress:           p.BuyerAddress,
		}
	}

	// One order stands in for all of them when checking approvals.
	dummy, err := c.makeSellOrder(ctx, sellParams(p.Assets[0]))
	if err != nil {
		return 0, err
	}
	if err := c.sellOrderValidationAndApprovals(ctx, dummy, p.AccountAddress); err != nil {
		return 0, err
	}

	makeAndPost := func(ctx context.Context, asset types.Asset) error {
		unhashed, err := c.makeSellOrder(ctx, sellParams(asset))
		if err != nil {
			return err
		}
		if email, ok := p.BuyerEmail.Get(); ok {
			if err := c.createEmailWhitelistEntry(ctx, unhashed, email); err != nil {
				return err
			}
		}
		order, err := c.hashAndAuthorize(ctx, unhashed, declinedFactory)
		if err != nil {
			return err
		}
		_, err = c.ValidateAndPostOrder(ctx, order)
		return err
	}

	total := p.NumberOfOrders * len(p.Assets)
	created := 0
	for start := 0; start < total; start += c.cfg.SellOrderBatchSize {
		end := min(start+c.cfg.SellOrderBatchSize, total)
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			asset := p.Assets[i/p.NumberOfOrders]
			g.Go(func() error { return makeAndPost(gctx, asset) })
		}
		if err := g.Wait(); err != nil {
			return created, err
		}
		c.log.Infof("Created and posted a batch of %d orders in parallel.", end-start)
		created += end - start
		if err := sleep(ctx, c.cfg.BatchDelay); err != nil {
			return created, err
		}
	}
	return created, nil
}

// ValidateAndPostOrder checks the exchange computes the same hash for order
// and posts it to the orderbook.
func (c *Client) ValidateAndPostOrder(ctx context.Context, order *types.Order) (*types.Order, error) {
	remote, err := c.exchange.HashOrder(ctx, &order.UnhashedOrder)
	if err != nil {
		return nil, errors.Wrap(err, "hash order on exchange")
	}
	if remote != order.Hash {
		c.log.WithFields(logrus.Fields{"local": order.Hash.Hex(), "remote": remote.Hex()}).Error("order hash mismatch")
		return nil, &HashMismatchError{Local: order.Hash, Remote: remote}
	}
	return c.api.PostOrder(ctx, types.OrderToJSON(order))
}

func (c *Client) hashAndAuthorize(ctx context.Context, unhashed *types.UnhashedOrder, declined string) (*types.Order, error) {
	order := &types.Order{UnhashedOrder: *unhashed, Hash: chain.HashOrder(unhashed)}
	sig, err := c.authorizeOrder(ctx, order)
	if err != nil {
		c.log.WithError(err).Error("order authorization failed")
		var d *DeclinedError
		if errors.As(err, &d) {
			return nil, &DeclinedError{Message: declined, Err: err}
		}
		return nil, err
	}
	order.Signature = sig
	return order, nil
}

// authorizeOrder signs order for an externally owned maker. Contract makers
// approve the order on chain instead and get no signature.
func (c *Client) authorizeOrder(ctx context.Context, order *types.Order) (*types.ECSignature, error) {
	c.bus.Dispatch(events.CreateOrderEvent{AccountAddress: order.Maker, Order: order})

	code, err := c.provider.CodeAt(ctx, order.Maker)
	if err != nil {
		return nil, errors.Wrap(err, "check maker code")
	}
	if len(code) > 0 {
		if err := c.approveOrder(ctx, order); err != nil {
			c.bus.Dispatch(events.OrderDeniedEvent{AccountAddress: order.Maker, Order: order})
			return nil, err
		}
		return nil, nil
	}

	raw, err := c.provider.SignMessage(ctx, order.Maker, order.Hash.Bytes())
	if err != nil {
		c.bus.Dispatch(events.OrderDeniedEvent{AccountAddress: order.Maker, Order: order})
		return nil, &DeclinedError{Message: "Failed to sign order", Err: err}
	}
	sig, err := chain.ParseSignature(raw)
	if err != nil {
		c.bus.Dispatch(events.OrderDeniedEvent{AccountAddress: order.Maker, Order: order})
		return nil, &DeclinedError{Message: err.Error(), Err: err}
	}
	return &sig, nil
}

// approveOrder approves order on the exchange from its maker.
func (c *Client) approveOrder(ctx context.Context, order *types.Order) error {
	includeInOrderbook := true
	c.bus.Dispatch(events.ApproveOrderEvent{AccountAddress: order.Maker, Order: order})

	data, err := c.exchange.PackApproveOrder(&order.UnhashedOrder, includeInOrderbook)
	if err != nil {
		return err
	}
	hash, err := c.sendTransaction(ctx, order.Maker, c.exchange.Address(), data, nil, 0)
	if err != nil {
		return err
	}
	return c.confirmTransaction(ctx, hash, events.ApproveOrder, "Approving order", func(ctx context.Context) (bool, error) {
		return c.exchange.ValidateOrder(ctx, order.Maker, order)
	})
}

func (c *Client) createEmailWhitelistEntry(ctx context.Context, order *types.UnhashedOrder, email string) error {
	asset := order.Metadata.Asset
	if asset == nil || asset.ID == nil {
		return &ValidationError{Message: "Whitelisting only available for non-fungible assets."}
	}
	_, err := c.api.PostAssetWhitelist(ctx, asset.Address, asset.ID, email)
	return err
}

// orderAssets lists the assets an order trades and their schemas.
func orderAssets(order *types.UnhashedOrder) ([]types.SchemaName, []types.WyvernAsset, error) {
	switch {
	case order.Metadata.Bundle != nil:
		return order.Metadata.Bundle.Schemas, order.Metadata.Bundle.Assets, nil
	case order.Metadata.Asset != nil:
		name := order.Metadata.Schema
		if name == types.SchemaUnknown {
			name = types.SchemaERC721
		}
		return []types.SchemaName{name}, []types.WyvernAsset{*order.Metadata.Asset}, nil
	default:
		return nil, nil, &ValidationError{Message: "Invalid order metadata"}
	}
}

// sellOrderValidationAndApprovals makes sure the seller owns and has
// approved everything in the order, and the exchange accepts it.
func (c *Client) sellOrderValidationAndApprovals(ctx context.Context, order *types.UnhashedOrder, account common.Address) error {
	names, assets, err := orderAssets(order)
	if err != nil {
		return err
	}
	if err := c.approveAssets(ctx, names, assets, account, mo.None[common.Address]()); err != nil {
		return err
	}

	// English auction listings are paid in an ERC20 the seller may need to
	// cover fees with.
	if !types.IsNull(order.PaymentToken) {
		_, err := c.ApproveFungibleToken(ctx, FungibleApprovalParams{
			AccountAddress: account,
			TokenAddress:   order.PaymentToken,
			MinimumAmount:  order.BasePrice,
		})
		if err != nil {
			return err
		}
	}

	valid, err := c.exchange.ValidateOrderParameters(ctx, account, order)
	if err != nil {
		return errors.Wrap(err, "validate sell order parameters")
	}
	if !valid {
		return &ValidationError{Message: "Failed to validate sell order parameters. Make sure you're on the right network!"}
	}
	return nil
}

// buyOrderValidationAndApprovals checks the buyer holds and has approved
// enough of the payment token, and that the exchange accepts the order.
// With a counter order the amount needed is its current price.
func (c *Client) buyOrderValidationAndApprovals(ctx context.Context, order *types.UnhashedOrder, counter *types.Order, account common.Address) error {
	token := order.PaymentToken
	if !types.IsNull(token) {
		balance, err := c.GetTokenBalance(ctx, account, token)
		if err != nil {
			return err
		}
		minimum := order.BasePrice
		if counter != nil {
			if minimum, err = c.requiredAmountForTakingSellOrder(ctx, counter); err != nil {
				return err
			}
		}
		if balance.Cmp(minimum) < 0 {
			if token == c.contracts.WETH {
				return &ValidationError{Message: "Insufficient balance. You may need to wrap Ether."}
			}
			return &ValidationError{Message: "Insufficient balance."}
		}
		approved, err := c.CheckFungibleTokenApproval(ctx, FungibleApprovalParams{
			AccountAddress: account,
			TokenAddress:   token,
			MinimumAmount:  minimum,
		})
		if err != nil {
			return err
		}
		if !approved {
			return &ValidationError{Message: "Payment token not approved! Approve amount first on site!"}
		}
	}

	valid, err := c.exchange.ValidateOrderParameters(ctx, account, order)
	if err != nil {
		return errors.Wrap(err, "validate buy order parameters")
	}
	if !valid {
		return &ValidationError{Message: "Failed to validate buy order parameters. Make sure you're on the right network!"}
	}
	return nil
}

// requiredAmountForTakingSellOrder is what a buyer must pay to take sell now,
// fees included.
func (c *Client) requiredAmountForTakingSellOrder(ctx context.Context, sell *types.Order) (*big.Int, error) {
	price, err := c.exchange.CalculateCurrentPrice(ctx, &sell.UnhashedOrder)
	if err != nil {
		return nil, errors.Wrap(err, "calculate current price")
	}
	return pricing.RequiredAmountForTakingSellOrder(price, &sell.UnhashedOrder, c.now()), nil
}
