package pricing

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// EtherDecimals is the number of decimals of native ether.
const EtherDecimals int32 = 18

// DefaultSecondsToBacktrack shifts "now" back when estimating prices so an
// order does not look further along its auction than the chain sees it.
const DefaultSecondsToBacktrack int64 = 30

var inverseBasisPoint = decimal.NewFromInt(types.InverseBasisPoint)

// ToBaseUnits converts a human amount to base units of a token with the given
// decimals. Amounts with more precision than the token supports are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, errors.Errorf("Invalid unit amount: %s - Too many decimal places", amount.String())
	}
	return shifted.BigInt(), nil
}

func toWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(EtherDecimals).Round(0).BigInt()
}

// SaleKindFor returns DutchAuction when an end amount is set and differs from
// the start amount.
func SaleKindFor(start decimal.Decimal, end mo.Option[decimal.Decimal]) types.SaleKind {
	if e, ok := end.Get(); ok && !e.Equal(start) {
		return types.SaleKindDutchAuction
	}
	return types.SaleKindFixedPrice
}

// PriceParams is the input of PriceParameters. Token is the payment token
// record resolved for PaymentToken, nil when the lookup found nothing.
type PriceParams struct {
	Side                       types.Side
	PaymentToken               common.Address
	Token                      *types.PaymentToken
	ExpirationTime             int64
	StartAmount                decimal.Decimal
	EndAmount                  mo.Option[decimal.Decimal]
	WaitingForBestCounterOrder bool
	EnglishAuctionReservePrice mo.Option[decimal.Decimal]
}

// Prices are the price fields of an order in base units.
type Prices struct {
	BasePrice    *big.Int
	Extra        *big.Int
	PaymentToken common.Address
	ReservePrice *big.Int
}

// PriceParameters validates the pricing of a new order and converts it to base
// units of the payment token. The null payment token is ether.
func PriceParameters(p PriceParams) (Prices, error) {
	priceDiff := decimal.Zero
	if end, ok := p.EndAmount.Get(); ok {
		priceDiff = p.StartAmount.Sub(end)
	}
	isEther := types.IsNull(p.PaymentToken)
	reserve, hasReserve := p.EnglishAuctionReservePrice.Get()
	if hasReserve && reserve.IsZero() {
		hasReserve = false
	}

	if p.StartAmount.IsNegative() {
		return Prices{}, errors.New("Starting price must be a number >= 0")
	}
	if !isEther && p.Token == nil {
		return Prices{}, errors.Errorf("No ERC-20 token found for '%s'", types.LowerHex(p.PaymentToken))
	}
	if isEther && p.WaitingForBestCounterOrder {
		return Prices{}, errors.New("English auctions must use wrapped ETH or an ERC-20 token.")
	}
	if isEther && p.Side == types.SideBuy {
		return Prices{}, errors.New("Offers must use wrapped ETH or an ERC-20 token.")
	}
	if priceDiff.IsNegative() {
		return Prices{}, errors.New("End price must be less than or equal to the start price.")
	}
	if priceDiff.IsPositive() && p.ExpirationTime == 0 {
		return Prices{}, errors.New("Expiration time must be set if order will change in price.")
	}
	if hasReserve && !p.WaitingForBestCounterOrder {
		return Prices{}, errors.New("Reserve prices may only be set on English auctions.")
	}
	if hasReserve && reserve.LessThan(p.StartAmount) {
		return Prices{}, errors.New("Reserve price must be greater than or equal to the start amount.")
	}

	convert := func(d decimal.Decimal) (*big.Int, error) {
		if isEther {
			return toWei(d), nil
		}
		return ToBaseUnits(d, p.Token.Decimals)
	}

	out := Prices{PaymentToken: p.PaymentToken}
	var err error
	if out.BasePrice, err = convert(p.StartAmount); err != nil {
		return Prices{}, err
	}
	if out.Extra, err = convert(priceDiff); err != nil {
		return Prices{}, err
	}
	if hasReserve {
		if out.ReservePrice, err = convert(reserve); err != nil {
			return Prices{}, err
		}
	}
	return out, nil
}

func dec(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

// EstimateCurrentPrice mirrors the exchange's price calculation for order at
// now minus secondsToBacktrack. Sell orders that are not English auctions
// include the taker relayer fee the buyer pays on top.
func EstimateCurrentPrice(order *types.UnhashedOrder, now time.Time, secondsToBacktrack int64, roundUp bool) decimal.Decimal {
	at := decimal.NewFromInt(now.Unix() - secondsToBacktrack)
	basePrice := dec(order.BasePrice)
	price := basePrice

	if order.SaleKind == types.SaleKindDutchAuction {
		listing := dec(order.ListingTime)
		duration := dec(order.ExpirationTime).Sub(listing)
		diff := dec(order.Extra)
		if duration.IsPositive() {
			diff = diff.Mul(at.Sub(listing)).DivRound(duration, 32)
		}
		if order.Side == types.SideSell {
			price = basePrice.Sub(diff)
		} else {
			price = basePrice.Add(diff)
		}
	}

	if order.Side == types.SideSell && !order.WaitingForBestCounterOrder {
		price = price.Mul(dec(order.TakerRelayerFee).Add(inverseBasisPoint)).Div(inverseBasisPoint)
	}

	if roundUp {
		return price.Ceil()
	}
	return price
}

// CurrentPrice is EstimateCurrentPrice with the default backtrack, rounded up.
func CurrentPrice(order *types.UnhashedOrder, now time.Time) *big.Int {
	return EstimateCurrentPrice(order, now, DefaultSecondsToBacktrack, true).BigInt()
}

// RequiredAmountForTakingSellOrder is the amount a buyer must hold to take
// sell: the larger of the on-chain and estimated prices plus the taker fee.
func RequiredAmountForTakingSellOrder(onChainPrice *big.Int, sell *types.UnhashedOrder, now time.Time) *big.Int {
	estimate := EstimateCurrentPrice(sell, now, DefaultSecondsToBacktrack, true)
	maxPrice := decimal.Max(dec(onChainPrice), estimate)
	fee := dec(sell.TakerRelayerFee).Div(inverseBasisPoint).Mul(maxPrice)
	return maxPrice.Add(fee).Ceil().BigInt()
}
