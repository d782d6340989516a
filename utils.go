package wyvern

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"

	"github.com/kaifufi/wyvern-sdk-go/schema"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

// newSalt returns a random 256-bit salt so otherwise identical orders hash
// differently.
func newSalt() *big.Int {
	salt, err := rand.Int(rand.Reader, types.MaxUint256)
	if err != nil {
		panic("wyvern: crypto/rand failed: " + err.Error())
	}
	return salt
}

// matchMetadata is the referrer passed to atomicMatch, left padded to 32
// bytes, or the null hash when the referrer is not an address.
func matchMetadata(referrer mo.Option[common.Address], order *types.Order) common.Hash {
	if addr, ok := referrer.Get(); ok {
		return common.BytesToHash(addr.Bytes())
	}
	if ref := order.Metadata.ReferrerAddress; common.IsHexAddress(ref) {
		return common.BytesToHash(common.HexToAddress(ref).Bytes())
	}
	return types.NullBlockHash
}

// schemaFor resolves the transfer schema of name. Assets without a schema
// are treated as ERC721.
func schemaFor(name types.SchemaName) (schema.TransferEncodable, error) {
	if name == types.SchemaUnknown {
		name = types.SchemaERC721
	}
	enc, err := schema.ForSchema(name)
	if err != nil {
		return nil, asValidation(err)
	}
	return enc, nil
}

// correctGas pads an estimate by factor, rounding up.
func correctGas(estimate uint64, factor float64) uint64 {
	return uint64(math.Ceil(float64(estimate) * factor))
}

// isUserRejection reports whether a wallet error is the user refusing to
// sign.
func isUserRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"user denied", "user rejected", "rejected by user", "user canceled", "user cancelled"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AddressSet is a set of contract addresses safe for concurrent use.
type AddressSet struct {
	mu    sync.Mutex
	addrs map[common.Address]struct{}
}

// NewAddressSet returns an empty set.
func NewAddressSet() *AddressSet {
	return &AddressSet{addrs: make(map[common.Address]struct{})}
}

// Add inserts addr and reports whether it was absent.
func (s *AddressSet) Add(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addrs == nil {
		s.addrs = make(map[common.Address]struct{})
	}
	if _, ok := s.addrs[addr]; ok {
		return false
	}
	s.addrs[addr] = struct{}{}
	return true
}

func (s *AddressSet) Remove(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.addrs, addr)
}

func (s *AddressSet) Contains(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.addrs[addr]
	return ok
}
