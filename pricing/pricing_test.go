package pricing

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

var (
	now  = time.Unix(1_700_000_000, 0)
	weth = &types.PaymentToken{Symbol: "WETH", Decimals: 18, Address: common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")}
)

func collectionAsset(openseaSeller, devSeller, openseaBuyer int64) *types.AssetMetadata {
	return &types.AssetMetadata{
		Collection: types.Collection{
			OpenSeaSellerFeeBasisPoints: openseaSeller,
			DevSellerFeeBasisPoints:     devSeller,
			OpenSeaBuyerFeeBasisPoints:  openseaBuyer,
		},
		TransferFee:             big.NewInt(7),
		TransferFeePaymentToken: weth,
	}
}

func TestComputeFees(t *testing.T) {
	t.Run("defaults without asset", func(t *testing.T) {
		fees, err := ComputeFees(FeeParams{Side: types.SideSell})
		require.NoError(t, err)
		assert.Equal(t, DefaultSellerFeeBasisPoints, fees.TotalSellerFeeBasisPoints)
		assert.Equal(t, DefaultBuyerFeeBasisPoints, fees.TotalBuyerFeeBasisPoints)
		assert.Zero(t, fees.TransferFee.Sign())
		assert.True(t, fees.TransferFeeTokenAddress.IsAbsent())
	})

	t.Run("collection schedule", func(t *testing.T) {
		fees, err := ComputeFees(FeeParams{Asset: collectionAsset(250, 500, 10), Side: types.SideSell, ExtraBountyBasisPoints: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(750), fees.TotalSellerFeeBasisPoints)
		assert.Equal(t, int64(10), fees.TotalBuyerFeeBasisPoints)
		assert.Equal(t, int64(100), fees.SellerBountyBasisPoints)
		assert.Equal(t, int64(7), fees.TransferFee.Int64())
		assert.Equal(t, weth.Address, fees.TransferFeeTokenAddress.MustGet())
	})

	t.Run("buy side ignores bounty and transfer fee", func(t *testing.T) {
		fees, err := ComputeFees(FeeParams{Asset: collectionAsset(250, 0, 0), Side: types.SideBuy, ExtraBountyBasisPoints: 1000})
		require.NoError(t, err)
		assert.Zero(t, fees.SellerBountyBasisPoints)
		assert.Zero(t, fees.TransferFee.Sign())
	})

	t.Run("bounty too large", func(t *testing.T) {
		_, err := ComputeFees(FeeParams{Asset: collectionAsset(250, 0, 0), Side: types.SideSell, ExtraBountyBasisPoints: 200})
		require.Error(t, err)
		assert.Equal(t, "Total bounty exceeds the maximum for this asset type (2.5%). Remember that OpenSea will add 1% for referrers with OpenSea accounts!", err.Error())
	})

	t.Run("bounty too large under tiny ceiling", func(t *testing.T) {
		_, err := ComputeFees(FeeParams{Asset: collectionAsset(50, 0, 0), Side: types.SideSell, ExtraBountyBasisPoints: 1})
		require.Error(t, err)
		assert.Equal(t, "Total bounty exceeds the maximum for this asset type (0.5%).", err.Error())
	})

	t.Run("private orders are fee free", func(t *testing.T) {
		fees, err := ComputeFees(FeeParams{Asset: collectionAsset(250, 500, 10), Side: types.SideSell, IsPrivate: true, ExtraBountyBasisPoints: 100})
		require.NoError(t, err)
		assert.Zero(t, fees.TotalSellerFeeBasisPoints)
		assert.Zero(t, fees.TotalBuyerFeeBasisPoints)
		assert.Zero(t, fees.SellerBountyBasisPoints)
	})
}

func TestValidateFees(t *testing.T) {
	assert.NoError(t, ValidateFees(0, 10000))
	assert.EqualError(t, ValidateFees(10001, 0), "Invalid buyer/seller fees: must be less than 100%")
	assert.EqualError(t, ValidateFees(0, -1), "Invalid buyer/seller fees: must be at least 0%")
}

func TestBuyFeeParameters(t *testing.T) {
	params, err := BuyFeeParameters(10, 250, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), params.MakerRelayerFee.Int64())
	assert.Equal(t, int64(250), params.TakerRelayerFee.Int64())
	assert.Equal(t, types.OpenSeaFeeRecipient, params.FeeRecipient)
	assert.Equal(t, types.FeeMethodSplitFee, params.FeeMethod)

	sell := &types.Order{UnhashedOrder: types.NewUnhashedOrder()}
	sell.MakerRelayerFee = big.NewInt(300)
	sell.TakerRelayerFee = big.NewInt(20)

	params, err = BuyFeeParameters(0, 0, sell)
	require.NoError(t, err)
	assert.Equal(t, int64(20), params.MakerRelayerFee.Int64())
	assert.Equal(t, int64(300), params.TakerRelayerFee.Int64())

	sell.WaitingForBestCounterOrder = true
	params, err = BuyFeeParameters(0, 0, sell)
	require.NoError(t, err)
	assert.Equal(t, int64(300), params.MakerRelayerFee.Int64())
	assert.Equal(t, int64(20), params.TakerRelayerFee.Int64())
}

func TestSellFeeParameters(t *testing.T) {
	params, err := SellFeeParameters(10, 250, false, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(250), params.MakerRelayerFee.Int64())
	assert.Equal(t, int64(10), params.TakerRelayerFee.Int64())
	assert.Equal(t, int64(50), params.MakerReferrerFee.Int64())
	assert.Equal(t, types.OpenSeaFeeRecipient, params.FeeRecipient)

	params, err = SellFeeParameters(10, 250, true, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), params.MakerRelayerFee.Int64())
	assert.Equal(t, int64(250), params.TakerRelayerFee.Int64())
	assert.Equal(t, types.NullAddress, params.FeeRecipient)

	_, err = SellFeeParameters(-5, 250, false, 0)
	assert.Error(t, err)
}

func TestTimeParameters(t *testing.T) {
	unix := now.Unix()

	t.Run("fixed price starts now", func(t *testing.T) {
		times, err := TimeParameters(now, 0, mo.None[int64](), false)
		require.NoError(t, err)
		assert.Equal(t, unix-100, times.ListingTime.Int64())
		assert.Zero(t, times.ExpirationTime.Int64())
	})

	t.Run("english auction", func(t *testing.T) {
		exp := unix + 3600
		times, err := TimeParameters(now, exp, mo.None[int64](), true)
		require.NoError(t, err)
		assert.Equal(t, exp, times.ListingTime.Int64())
		assert.Equal(t, exp+OrderMatchingLatencySeconds, times.ExpirationTime.Int64())
	})

	tests := []struct {
		name    string
		exp     int64
		listing mo.Option[int64]
		english bool
		want    string
	}{
		{"expiration too soon", unix + 5, mo.None[int64](), false, "Expiration time must be at least 10 seconds from now, or zero (non-expiring)."},
		{"listing in past", 0, mo.Some(unix - 1), false, "Listing time cannot be in the past."},
		{"listing after expiration", unix + 100, mo.Some(unix + 200), false, "Listing time must be before the expiration time."},
		{"english without expiration", 0, mo.None[int64](), true, "English auctions must have an expiration time."},
		{"scheduled english", unix + 100, mo.Some(unix + 50), true, "Cannot schedule an English auction for the future."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TimeParameters(now, tt.exp, tt.listing, tt.english)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestPriceParameters(t *testing.T) {
	one := decimal.NewFromInt(1)

	t.Run("weth fixed price", func(t *testing.T) {
		prices, err := PriceParameters(PriceParams{
			Side:         types.SideSell,
			PaymentToken: weth.Address,
			Token:        weth,
			StartAmount:  one,
		})
		require.NoError(t, err)
		assert.Equal(t, "1000000000000000000", prices.BasePrice.String())
		assert.Zero(t, prices.Extra.Sign())
		assert.Nil(t, prices.ReservePrice)
	})

	t.Run("ether dutch", func(t *testing.T) {
		prices, err := PriceParameters(PriceParams{
			Side:           types.SideSell,
			ExpirationTime: now.Unix() + 3600,
			StartAmount:    decimal.RequireFromString("2.5"),
			EndAmount:      mo.Some(decimal.RequireFromString("1")),
		})
		require.NoError(t, err)
		assert.Equal(t, "2500000000000000000", prices.BasePrice.String())
		assert.Equal(t, "1500000000000000000", prices.Extra.String())
	})

	t.Run("english reserve", func(t *testing.T) {
		prices, err := PriceParameters(PriceParams{
			Side:                       types.SideSell,
			PaymentToken:               weth.Address,
			Token:                      weth,
			StartAmount:                one,
			WaitingForBestCounterOrder: true,
			EnglishAuctionReservePrice: mo.Some(decimal.NewFromInt(2)),
		})
		require.NoError(t, err)
		assert.Equal(t, "2000000000000000000", prices.ReservePrice.String())
	})

	tests := []struct {
		name string
		p    PriceParams
		want string
	}{
		{"negative start", PriceParams{Side: types.SideSell, StartAmount: decimal.NewFromInt(-1)}, "Starting price must be a number >= 0"},
		{"unknown token", PriceParams{Side: types.SideSell, PaymentToken: common.HexToAddress("0x01"), StartAmount: one}, "No ERC-20 token found for '0x0000000000000000000000000000000000000001'"},
		{"english in ether", PriceParams{Side: types.SideSell, StartAmount: one, WaitingForBestCounterOrder: true}, "English auctions must use wrapped ETH or an ERC-20 token."},
		{"offer in ether", PriceParams{Side: types.SideBuy, StartAmount: one}, "Offers must use wrapped ETH or an ERC-20 token."},
		{"end above start", PriceParams{Side: types.SideSell, StartAmount: one, EndAmount: mo.Some(decimal.NewFromInt(2))}, "End price must be less than or equal to the start price."},
		{"declining without expiration", PriceParams{Side: types.SideSell, StartAmount: one, EndAmount: mo.Some(decimal.Zero)}, "Expiration time must be set if order will change in price."},
		{"reserve on fixed price", PriceParams{Side: types.SideSell, PaymentToken: weth.Address, Token: weth, StartAmount: one, EnglishAuctionReservePrice: mo.Some(one)}, "Reserve prices may only be set on English auctions."},
		{"reserve below start", PriceParams{Side: types.SideSell, PaymentToken: weth.Address, Token: weth, StartAmount: decimal.NewFromInt(3), WaitingForBestCounterOrder: true, EnglishAuctionReservePrice: mo.Some(one)}, "Reserve price must be greater than or equal to the start amount."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PriceParameters(tt.p)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestToBaseUnits(t *testing.T) {
	v, err := ToBaseUnits(decimal.RequireFromString("1.5"), 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", v.String())

	_, err = ToBaseUnits(decimal.RequireFromString("1.5"), 0)
	assert.EqualError(t, err, "Invalid unit amount: 1.5 - Too many decimal places")
}

func TestSaleKindFor(t *testing.T) {
	one := decimal.NewFromInt(1)
	assert.Equal(t, types.SaleKindFixedPrice, SaleKindFor(one, mo.None[decimal.Decimal]()))
	assert.Equal(t, types.SaleKindFixedPrice, SaleKindFor(one, mo.Some(one)))
	assert.Equal(t, types.SaleKindDutchAuction, SaleKindFor(one, mo.Some(decimal.Zero)))
}

func TestEstimateCurrentPrice(t *testing.T) {
	fixed := types.NewUnhashedOrder()
	fixed.Side = types.SideBuy
	fixed.BasePrice = big.NewInt(1000)

	t.Run("fixed price ignores elapsed time", func(t *testing.T) {
		for _, at := range []time.Time{now, now.Add(time.Hour), now.Add(24 * 365 * time.Hour)} {
			assert.Equal(t, "1000", CurrentPrice(&fixed, at).String())
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		dutch := types.NewUnhashedOrder()
		dutch.Side = types.SideSell
		dutch.SaleKind = types.SaleKindDutchAuction
		dutch.BasePrice = big.NewInt(1000)
		dutch.Extra = big.NewInt(333)
		dutch.ListingTime = big.NewInt(now.Unix() - 1000)
		dutch.ExpirationTime = big.NewInt(now.Unix() + 2000)
		first := EstimateCurrentPrice(&dutch, now, 30, false)
		second := EstimateCurrentPrice(&dutch, now, 30, false)
		assert.True(t, first.Equal(second))
	})

	t.Run("sell dutch declines and adds taker fee", func(t *testing.T) {
		dutch := types.NewUnhashedOrder()
		dutch.Side = types.SideSell
		dutch.SaleKind = types.SaleKindDutchAuction
		dutch.BasePrice = big.NewInt(10000)
		dutch.Extra = big.NewInt(1000)
		dutch.TakerRelayerFee = big.NewInt(100)
		// halfway through after backtracking
		dutch.ListingTime = big.NewInt(now.Unix() - 30 - 500)
		dutch.ExpirationTime = big.NewInt(now.Unix() - 30 + 500)

		assert.Equal(t, "9595", CurrentPrice(&dutch, now).String())
	})

	t.Run("buy dutch increases", func(t *testing.T) {
		dutch := types.NewUnhashedOrder()
		dutch.Side = types.SideBuy
		dutch.SaleKind = types.SaleKindDutchAuction
		dutch.BasePrice = big.NewInt(100)
		dutch.Extra = big.NewInt(3)
		dutch.ListingTime = big.NewInt(now.Unix() - 30)
		dutch.ExpirationTime = big.NewInt(now.Unix() - 30 + 2)
		// elapsed 0 of 2
		assert.Equal(t, "100", CurrentPrice(&dutch, now).String())
		// elapsed 1 of 2 gives 101.5, rounded up
		assert.Equal(t, "102", CurrentPrice(&dutch, now.Add(time.Second)).String())
		assert.Equal(t, "101.5", EstimateCurrentPrice(&dutch, now.Add(time.Second), 30, false).String())
	})

	t.Run("english auction sell omits taker fee", func(t *testing.T) {
		english := types.NewUnhashedOrder()
		english.Side = types.SideSell
		english.BasePrice = big.NewInt(10000)
		english.TakerRelayerFee = big.NewInt(250)
		english.WaitingForBestCounterOrder = true
		assert.Equal(t, "10000", CurrentPrice(&english, now).String())
		english.WaitingForBestCounterOrder = false
		assert.Equal(t, "10250", CurrentPrice(&english, now).String())
	})
}

func TestRequiredAmountForTakingSellOrder(t *testing.T) {
	sell := types.NewUnhashedOrder()
	sell.Side = types.SideSell
	sell.BasePrice = big.NewInt(10000)
	sell.TakerRelayerFee = big.NewInt(100)

	// estimate includes the fee already: 10100, then the fee is applied again
	assert.Equal(t, "10201", RequiredAmountForTakingSellOrder(big.NewInt(9000), &sell, now).String())
	assert.Equal(t, "20200", RequiredAmountForTakingSellOrder(big.NewInt(20000), &sell, now).String())
}

func TestCanSettle(t *testing.T) {
	unix := now.Unix()
	assert.True(t, CanSettle(big.NewInt(unix-1), big.NewInt(0), now))
	assert.True(t, CanSettle(big.NewInt(unix-1), big.NewInt(unix+1), now))
	assert.False(t, CanSettle(big.NewInt(unix), big.NewInt(0), now))
	assert.False(t, CanSettle(big.NewInt(unix-10), big.NewInt(unix), now))
}
