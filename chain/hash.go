package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// ErrInvalidSignature is returned when neither byte ordering of a signature
// yields a valid recovery id.
var ErrInvalidSignature = errors.New("Invalid signature")

func uint256Word(v *big.Int) []byte {
	if v == nil {
		v = new(big.Int)
	}
	return math.U256Bytes(new(big.Int).Set(v))
}

// HashOrder computes the exchange's order hash: Keccak-256 over the tightly
// packed order fields, with enums as single bytes and numbers as 32-byte words.
func HashOrder(o *types.UnhashedOrder) common.Hash {
	var packed []byte
	packed = append(packed, o.Exchange.Bytes()...)
	packed = append(packed, o.Maker.Bytes()...)
	packed = append(packed, o.Taker.Bytes()...)
	packed = append(packed, uint256Word(o.MakerRelayerFee)...)
	packed = append(packed, uint256Word(o.TakerRelayerFee)...)
	packed = append(packed, uint256Word(o.MakerProtocolFee)...)
	packed = append(packed, uint256Word(o.TakerProtocolFee)...)
	packed = append(packed, o.FeeRecipient.Bytes()...)
	packed = append(packed, byte(o.FeeMethod), byte(o.Side), byte(o.SaleKind))
	packed = append(packed, o.Target.Bytes()...)
	packed = append(packed, byte(o.HowToCall))
	packed = append(packed, o.Calldata...)
	packed = append(packed, o.ReplacementPattern...)
	packed = append(packed, o.StaticTarget.Bytes()...)
	packed = append(packed, o.StaticExtradata...)
	packed = append(packed, o.PaymentToken.Bytes()...)
	packed = append(packed, uint256Word(o.BasePrice)...)
	packed = append(packed, uint256Word(o.Extra)...)
	packed = append(packed, uint256Word(o.ListingTime)...)
	packed = append(packed, uint256Word(o.ExpirationTime)...)
	packed = append(packed, uint256Word(o.Salt)...)
	return crypto.Keccak256Hash(packed)
}

// PersonalSignHash is the digest a wallet signs for personal_sign over an
// order hash, and the digest the exchange recovers the maker from.
func PersonalSignHash(hash common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(hash.Bytes()))
}

// ParseSignature decodes a 65-byte signature in either r‖s‖v or v‖r‖s
// order. Only recovery ids 27 and 28 are accepted.
func ParseSignature(sig []byte) (types.ECSignature, error) {
	if len(sig) != 65 {
		return types.ECSignature{}, errors.Wrapf(ErrInvalidSignature, "length %d", len(sig))
	}

	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v == 27 || v == 28 {
		return types.ECSignature{
			V: v,
			R: common.BytesToHash(sig[0:32]),
			S: common.BytesToHash(sig[32:64]),
		}, nil
	}

	v = sig[0]
	if v < 27 {
		v += 27
	}
	if v == 27 || v == 28 {
		return types.ECSignature{
			V: v,
			R: common.BytesToHash(sig[1:33]),
			S: common.BytesToHash(sig[33:65]),
		}, nil
	}
	return types.ECSignature{}, ErrInvalidSignature
}

// RecoverSigner returns the address that produced sig over the personal-sign
// digest of hash.
func RecoverSigner(hash common.Hash, sig types.ECSignature) (common.Address, error) {
	raw := make([]byte, 65)
	copy(raw[0:32], sig.R.Bytes())
	copy(raw[32:64], sig.S.Bytes())
	raw[64] = sig.V - 27
	pub, err := crypto.SigToPub(PersonalSignHash(hash).Bytes(), raw)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recover signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}
