// Package pricing computes fee splits, listing windows and prices of Wyvern
// orders. Nothing in this package performs I/O.
package pricing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

const (
	DefaultBuyerFeeBasisPoints     int64 = 0
	DefaultSellerFeeBasisPoints    int64 = 250
	DefaultMaxBounty               int64 = DefaultSellerFeeBasisPoints
	OpenSeaSellerBountyBasisPoints int64 = 100
)

// FeeParams is the input of ComputeFees. A nil Asset selects the default fee
// schedule used for bundles spanning several collections.
type FeeParams struct {
	Asset                  *types.AssetMetadata
	Side                   types.Side
	IsPrivate              bool
	ExtraBountyBasisPoints int64
}

// Fees is the fee split of an order in basis points, plus the transfer fee
// charged by the asset contract itself.
type Fees struct {
	TotalBuyerFeeBasisPoints    int64
	TotalSellerFeeBasisPoints   int64
	OpenSeaBuyerFeeBasisPoints  int64
	OpenSeaSellerFeeBasisPoints int64
	DevBuyerFeeBasisPoints      int64
	DevSellerFeeBasisPoints     int64
	SellerBountyBasisPoints     int64
	TransferFee                 *big.Int
	TransferFeeTokenAddress     mo.Option[common.Address]
}

func percent(bp int64) string {
	return decimal.New(bp, -2).String()
}

// ComputeFees returns the fee split for an order on p.Side. Only sell orders
// carry a bounty and a transfer fee.
func ComputeFees(p FeeParams) (Fees, error) {
	fees := Fees{
		OpenSeaBuyerFeeBasisPoints:  DefaultBuyerFeeBasisPoints,
		OpenSeaSellerFeeBasisPoints: DefaultSellerFeeBasisPoints,
		TransferFee:                 new(big.Int),
		TransferFeeTokenAddress:     mo.None[common.Address](),
	}
	maxTotalBounty := DefaultMaxBounty

	if p.Asset != nil {
		c := p.Asset.Collection
		fees.OpenSeaBuyerFeeBasisPoints = c.OpenSeaBuyerFeeBasisPoints
		fees.OpenSeaSellerFeeBasisPoints = c.OpenSeaSellerFeeBasisPoints
		fees.DevBuyerFeeBasisPoints = c.DevBuyerFeeBasisPoints
		fees.DevSellerFeeBasisPoints = c.DevSellerFeeBasisPoints
		maxTotalBounty = c.OpenSeaSellerFeeBasisPoints
	}

	if p.Side == types.SideSell && p.Asset != nil {
		if p.Asset.TransferFee != nil {
			fees.TransferFee = new(big.Int).Set(p.Asset.TransferFee)
		}
		if p.Asset.TransferFeePaymentToken != nil {
			fees.TransferFeeTokenAddress = mo.Some(p.Asset.TransferFeePaymentToken.Address)
		}
	}

	if p.Side == types.SideSell {
		fees.SellerBountyBasisPoints = p.ExtraBountyBasisPoints
	}
	if fees.SellerBountyBasisPoints > 0 && fees.SellerBountyBasisPoints+OpenSeaSellerBountyBasisPoints > maxTotalBounty {
		msg := "Total bounty exceeds the maximum for this asset type (" + percent(maxTotalBounty) + "%)."
		if maxTotalBounty >= OpenSeaSellerBountyBasisPoints {
			msg += " Remember that OpenSea will add " + percent(OpenSeaSellerBountyBasisPoints) + "% for referrers with OpenSea accounts!"
		}
		return Fees{}, errors.New(msg)
	}

	if p.IsPrivate {
		fees.OpenSeaBuyerFeeBasisPoints = 0
		fees.OpenSeaSellerFeeBasisPoints = 0
		fees.DevBuyerFeeBasisPoints = 0
		fees.DevSellerFeeBasisPoints = 0
		fees.SellerBountyBasisPoints = 0
	}

	fees.TotalBuyerFeeBasisPoints = fees.OpenSeaBuyerFeeBasisPoints + fees.DevBuyerFeeBasisPoints
	fees.TotalSellerFeeBasisPoints = fees.OpenSeaSellerFeeBasisPoints + fees.DevSellerFeeBasisPoints
	return fees, nil
}

// ValidateFees rejects totals outside [0, 100%].
func ValidateFees(totalBuyerFeeBasisPoints, totalSellerFeeBasisPoints int64) error {
	if totalBuyerFeeBasisPoints > types.InverseBasisPoint || totalSellerFeeBasisPoints > types.InverseBasisPoint {
		return errors.Errorf("Invalid buyer/seller fees: must be less than %d%%", types.InverseBasisPoint/100)
	}
	if totalBuyerFeeBasisPoints < 0 || totalSellerFeeBasisPoints < 0 {
		return errors.New("Invalid buyer/seller fees: must be at least 0%")
	}
	return nil
}

// FeeParameters are the fee fields of an order.
type FeeParameters struct {
	MakerRelayerFee  *big.Int
	TakerRelayerFee  *big.Int
	MakerProtocolFee *big.Int
	TakerProtocolFee *big.Int
	MakerReferrerFee *big.Int
	FeeRecipient     common.Address
	FeeMethod        types.FeeMethod
}

// Apply copies the fee fields onto o.
func (f FeeParameters) Apply(o *types.UnhashedOrder) {
	o.MakerRelayerFee = f.MakerRelayerFee
	o.TakerRelayerFee = f.TakerRelayerFee
	o.MakerProtocolFee = f.MakerProtocolFee
	o.TakerProtocolFee = f.TakerProtocolFee
	o.MakerReferrerFee = f.MakerReferrerFee
	o.FeeRecipient = f.FeeRecipient
	o.FeeMethod = f.FeeMethod
}

// BuyFeeParameters returns the fee fields of a buy order. When sellOrder is
// given its relayer fees are mirrored so the two orders can match.
func BuyFeeParameters(totalBuyerFeeBasisPoints, totalSellerFeeBasisPoints int64, sellOrder *types.Order) (FeeParameters, error) {
	if err := ValidateFees(totalBuyerFeeBasisPoints, totalSellerFeeBasisPoints); err != nil {
		return FeeParameters{}, err
	}

	var maker, taker *big.Int
	switch {
	case sellOrder == nil:
		maker = big.NewInt(totalBuyerFeeBasisPoints)
		taker = big.NewInt(totalSellerFeeBasisPoints)
	case sellOrder.WaitingForBestCounterOrder:
		maker = new(big.Int).Set(sellOrder.MakerRelayerFee)
		taker = new(big.Int).Set(sellOrder.TakerRelayerFee)
	default:
		maker = new(big.Int).Set(sellOrder.TakerRelayerFee)
		taker = new(big.Int).Set(sellOrder.MakerRelayerFee)
	}

	return FeeParameters{
		MakerRelayerFee:  maker,
		TakerRelayerFee:  taker,
		MakerProtocolFee: new(big.Int),
		TakerProtocolFee: new(big.Int),
		MakerReferrerFee: new(big.Int),
		FeeRecipient:     types.OpenSeaFeeRecipient,
		FeeMethod:        types.FeeMethodSplitFee,
	}, nil
}

// SellFeeParameters returns the fee fields of a sell order. English auction
// sell orders act as takers, so maker and taker fees swap and the fee
// recipient is left null.
func SellFeeParameters(totalBuyerFeeBasisPoints, totalSellerFeeBasisPoints int64, waitForHighestBid bool, sellerBountyBasisPoints int64) (FeeParameters, error) {
	if err := ValidateFees(totalBuyerFeeBasisPoints, totalSellerFeeBasisPoints); err != nil {
		return FeeParameters{}, err
	}

	params := FeeParameters{
		MakerRelayerFee:  big.NewInt(totalSellerFeeBasisPoints),
		TakerRelayerFee:  big.NewInt(totalBuyerFeeBasisPoints),
		MakerProtocolFee: new(big.Int),
		TakerProtocolFee: new(big.Int),
		MakerReferrerFee: big.NewInt(sellerBountyBasisPoints),
		FeeRecipient:     types.OpenSeaFeeRecipient,
		FeeMethod:        types.FeeMethodSplitFee,
	}
	if waitForHighestBid {
		params.FeeRecipient = types.NullAddress
		params.MakerRelayerFee, params.TakerRelayerFee = params.TakerRelayerFee, params.MakerRelayerFee
	}
	return params, nil
}
