package pricing

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/mo"
)

const (
	MinExpirationSeconds        int64 = 10
	OrderMatchingLatencySeconds int64 = 60 * 60 * 24 * 7

	// listingLatencySeconds backdates listings that start now.
	listingLatencySeconds int64 = 100
)

// Times is the listing window of an order, in unix seconds.
type Times struct {
	ListingTime    *big.Int
	ExpirationTime *big.Int
}

// TimeParameters validates and resolves the listing window of a new order.
// An expirationTime of 0 means the order never expires. English auctions
// list at their expiration time and stay matchable for a further
// OrderMatchingLatencySeconds so the winning bid can be settled.
func TimeParameters(now time.Time, expirationTime int64, listingTime mo.Option[int64], waitingForBestCounterOrder bool) (Times, error) {
	unix := now.Unix()
	listing, hasListing := listingTime.Get()
	if hasListing && listing == 0 {
		hasListing = false
	}

	if expirationTime != 0 && expirationTime < unix+MinExpirationSeconds {
		return Times{}, errors.Errorf("Expiration time must be at least %d seconds from now, or zero (non-expiring).", MinExpirationSeconds)
	}
	if hasListing && listing < unix {
		return Times{}, errors.New("Listing time cannot be in the past.")
	}
	if hasListing && expirationTime != 0 && listing >= expirationTime {
		return Times{}, errors.New("Listing time must be before the expiration time.")
	}
	if waitingForBestCounterOrder && expirationTime == 0 {
		return Times{}, errors.New("English auctions must have an expiration time.")
	}
	if waitingForBestCounterOrder && hasListing {
		return Times{}, errors.New("Cannot schedule an English auction for the future.")
	}

	if waitingForBestCounterOrder {
		return Times{
			ListingTime:    big.NewInt(expirationTime),
			ExpirationTime: big.NewInt(expirationTime + OrderMatchingLatencySeconds),
		}, nil
	}
	if !hasListing {
		listing = unix - listingLatencySeconds
	}
	return Times{
		ListingTime:    big.NewInt(listing),
		ExpirationTime: big.NewInt(expirationTime),
	}, nil
}

// CanSettle reports whether the listing window is open at now.
func CanSettle(listingTime, expirationTime *big.Int, now time.Time) bool {
	n := big.NewInt(now.Unix())
	if listingTime.Cmp(n) >= 0 {
		return false
	}
	return expirationTime.Sign() == 0 || n.Cmp(expirationTime) < 0
}
