package wyvern

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/internal/retry"
	"github.com/kaifufi/wyvern-sdk-go/pricing"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

const (
	clockSkewMessage = "Error creating your order. Check that your system clock is set to the current date and time before you try again."
	calldataMismatch = "Unable to match offer data with auction data."
)

// FulfillOrder takes order from account and returns the hash of the match
// transaction once the order is no longer open on chain.
func (c *Client) FulfillOrder(ctx context.Context, p FulfillParams) (common.Hash, error) {
	buy, sell, metadata, err := c.matchOrders(p)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := c.atomicMatch(ctx, buy, sell, p.AccountAddress, metadata)
	if err != nil {
		return common.Hash{}, err
	}
	err = c.confirmTransaction(ctx, hash, events.MatchOrders, "Fulfilling order", func(ctx context.Context) (bool, error) {
		open, err := c.exchange.ValidateOrder(ctx, p.AccountAddress, p.Order)
		return !open, err
	})
	if err != nil {
		return hash, err
	}
	return hash, nil
}

// IsOrderFulfillable reports whether account could take order right now,
// judged by whether the exchange accepts a gas estimate for the match.
func (c *Client) IsOrderFulfillable(ctx context.Context, p FulfillParams) (bool, error) {
	buy, sell, metadata, err := c.matchOrders(p)
	if err != nil {
		return false, err
	}
	gas, err := c.estimateGasForMatch(ctx, buy, sell, p.AccountAddress, metadata, 1)
	if err != nil {
		c.log.WithError(err).WithField("order", p.Order.Hash.Hex()).Debug("match estimate failed")
		return false, nil
	}
	c.log.Debugf("Gas estimate for %s order: %d", p.Order.Side, gas)
	return gas > 0, nil
}

// CancelOrder cancels order on chain so it can never be matched.
func (c *Client) CancelOrder(ctx context.Context, order *types.Order, account common.Address) error {
	c.bus.Dispatch(events.CancelOrderEvent{AccountAddress: account, Order: order})

	data, err := c.exchange.PackCancelOrder(order)
	if err != nil {
		return errors.Wrap(err, "encode cancelOrder")
	}
	hash, err := c.sendTransaction(ctx, account, c.exchange.Address(), data, nil, 0)
	if err != nil {
		return err
	}
	return c.confirmTransaction(ctx, hash, events.CancelOrder, "Cancelling order", func(ctx context.Context) (bool, error) {
		open, err := c.exchange.ValidateOrder(ctx, account, order)
		return !open, err
	})
}

// GetCurrentPrice returns the price of order as the exchange computes it,
// without fees or bounties.
func (c *Client) GetCurrentPrice(ctx context.Context, order *types.Order) (*big.Int, error) {
	price, err := c.exchange.CalculateCurrentPrice(ctx, &order.UnhashedOrder)
	if err != nil {
		return nil, errors.Wrap(err, "calculate current price")
	}
	return price, nil
}

// AssignOrdersToSides pairs order with its counter order. The counter order
// carries the signature of order, as the exchange requires one per match.
func AssignOrdersToSides(order, matching *types.Order) (buy, sell *types.Order) {
	counter := *matching
	counter.Signature = order.Signature
	if order.Side == types.SideSell {
		return &counter, order
	}
	return order, &counter
}

// RequireOrdersCanMatch checks the conditions the exchange places on a
// match, reporting the first that fails.
func RequireOrdersCanMatch(buy, sell *types.UnhashedOrder, now time.Time) error {
	oneMakerOneTaker := types.IsNull(sell.FeeRecipient) != types.IsNull(buy.FeeRecipient)
	checks := []struct {
		ok  bool
		msg string
	}{
		{buy.Side == types.SideBuy && sell.Side == types.SideSell, "Must be opposite-side"},
		{buy.FeeMethod == sell.FeeMethod, "Must use same fee method"},
		{buy.PaymentToken == sell.PaymentToken, "Must use same payment token"},
		{types.IsNull(sell.Taker) || sell.Taker == buy.Maker, "Sell taker must be null or matching buy maker"},
		{types.IsNull(buy.Taker) || buy.Taker == sell.Maker, "Buy taker must be null or matching sell maker"},
		{oneMakerOneTaker, "One order must be maker and the other must be taker"},
		{buy.Target == sell.Target, "Must match target"},
		{buy.HowToCall == sell.HowToCall, "Must match howToCall"},
		{pricing.CanSettle(buy.ListingTime, buy.ExpirationTime, now), "Buy-side order is set in the future or expired"},
		{pricing.CanSettle(sell.ListingTime, sell.ExpirationTime, now), "Sell-side order is set in the future or expired"},
	}
	for _, check := range checks {
		if !check.ok {
			return &ValidationError{Message: check.msg}
		}
	}
	return nil
}

func (c *Client) matchOrders(p FulfillParams) (buy, sell *types.Order, metadata common.Hash, err error) {
	if p.Order == nil {
		return nil, nil, metadata, &ValidationError{Message: "an order is required"}
	}
	matching, err := c.makeMatchingOrder(p.Order, p.AccountAddress, p.RecipientAddress.OrElse(p.AccountAddress))
	if err != nil {
		return nil, nil, metadata, err
	}
	buy, sell = AssignOrdersToSides(p.Order, matching)
	return buy, sell, matchMetadata(p.ReferrerAddress, p.Order), nil
}

// validateMatch makes sure the exchange will accept buy and sell as a
// match. It retries once before giving up.
func (c *Client) validateMatch(ctx context.Context, buy, sell *types.Order, account common.Address, validateBuy, validateSell bool) error {
	log := c.log.WithFields(logrus.Fields{"buy": buy.Hash.Hex(), "sell": sell.Hash.Hex()})
	err := retry.Do(ctx, retry.FlatPolicy(1, c.cfg.RetryDelay), func(ctx context.Context) error {
		if validateBuy {
			valid, err := c.exchange.ValidateOrder(ctx, account, buy)
			if err != nil {
				return err
			}
			log.Debugf("Buy order is valid: %t", valid)
			if !valid {
				return errors.New("Invalid buy order. It may have recently been removed. Please refresh the page and try again!")
			}
		}
		if validateSell {
			valid, err := c.exchange.ValidateOrder(ctx, account, sell)
			if err != nil {
				return err
			}
			log.Debugf("Sell order is valid: %t", valid)
			if !valid {
				return errors.New("Invalid sell order. It may have recently been removed. Please refresh the page and try again!")
			}
		}

		canMatch, err := c.exchange.OrdersCanMatch(ctx, account, &buy.UnhashedOrder, &sell.UnhashedOrder)
		if err != nil {
			return err
		}
		log.Debugf("Orders matching: %t", canMatch)
		if !canMatch {
			if err := RequireOrdersCanMatch(&buy.UnhashedOrder, &sell.UnhashedOrder, c.now()); err != nil {
				return err
			}
			return errors.New(clockSkewMessage)
		}

		calldataOK, err := c.exchange.OrderCalldataCanMatch(ctx, &buy.UnhashedOrder, &sell.UnhashedOrder)
		if err != nil {
			return err
		}
		log.Debugf("Order calldata matching: %t", calldataOK)
		if !calldataOK {
			return errors.New(calldataMismatch)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return matchFailure(err)
	}
	return nil
}

func matchFailure(err error) error {
	return validationError("Error matching this listing: %s. Please contact the maker or try again later!", err.Error())
}

// atomicMatch validates the side account is on, checks the match and sends
// it. It returns the transaction hash without waiting for it.
func (c *Client) atomicMatch(ctx context.Context, buy, sell *types.Order, account common.Address, metadata common.Hash) (common.Hash, error) {
	validateBuy, validateSell := true, true
	var value *big.Int

	// Nobody's side is checked when a matching service sends the match.
	switch account {
	case sell.Maker:
		if err := c.sellOrderValidationAndApprovals(ctx, &sell.UnhashedOrder, account); err != nil {
			return common.Hash{}, err
		}
		validateSell = false
	case buy.Maker:
		if err := c.buyOrderValidationAndApprovals(ctx, &buy.UnhashedOrder, sell, account); err != nil {
			return common.Hash{}, err
		}
		validateBuy = false
		if types.IsNull(buy.PaymentToken) {
			required, err := c.requiredAmountForTakingSellOrder(ctx, sell)
			if err != nil {
				return common.Hash{}, err
			}
			value = required
		}
	}

	if err := RequireOrdersCanMatch(&buy.UnhashedOrder, &sell.UnhashedOrder, c.now()); err != nil {
		return common.Hash{}, matchFailure(err)
	}
	if err := c.validateMatch(ctx, buy, sell, account, validateBuy, validateSell); err != nil {
		return common.Hash{}, err
	}

	c.bus.Dispatch(events.MatchOrdersEvent{AccountAddress: account, Buy: buy, Sell: sell, MatchMetadata: metadata})

	data, err := c.exchange.PackAtomicMatch(buy, sell, metadata)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "encode atomicMatch")
	}
	to := c.exchange.Address()
	estimate, err := c.estimateGas(ctx, ethereum.CallMsg{From: account, To: &to, Data: data, Value: value}, 0)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"buy": buy.Hash.Hex(), "sell": sell.Hash.Hex()}).Error("Failed atomic match")
		return common.Hash{}, &SettlementError{
			Message: fmt.Sprintf("Oops, the Ethereum network rejected this transaction :( The OpenSea devs have been alerted, but this problem is typically due an item being locked or untransferrable. The exact error was %q", truncate(err.Error())+"..."),
			Err:     err,
		}
	}
	gas := correctGas(estimate, c.cfg.GasIncreaseFactor)
	c.log.Infof("Fulfilling order with gas set to %d", gas)
	return c.sendTransaction(ctx, account, to, data, value, gas)
}

// estimateGasForMatch estimates the match transaction, paying the current
// price in ether when account is an ether buyer.
func (c *Client) estimateGasForMatch(ctx context.Context, buy, sell *types.Order, account common.Address, metadata common.Hash, retries int) (uint64, error) {
	var value *big.Int
	if buy.Maker == account && types.IsNull(buy.PaymentToken) {
		required, err := c.requiredAmountForTakingSellOrder(ctx, sell)
		if err != nil {
			return 0, err
		}
		value = required
	}
	data, err := c.exchange.PackAtomicMatch(buy, sell, metadata)
	if err != nil {
		return 0, errors.Wrap(err, "encode atomicMatch")
	}
	to := c.exchange.Address()
	return c.estimateGas(ctx, ethereum.CallMsg{From: account, To: &to, Data: data, Value: value}, retries)
}
