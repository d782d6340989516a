package schema

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// Encoded is the target, calldata and replacement pattern of one side of an
// order.
type Encoded struct {
	Target             common.Address
	Calldata           []byte
	ReplacementPattern []byte
}

// EncodeSell encodes the seller's side of a transfer: the seller is the
// source and the destination is left zero for the buyer to fill in.
func EncodeSell(enc TransferEncodable, asset types.WyvernAsset, seller common.Address) (Encoded, error) {
	transfer := enc.Transfer(asset)
	calldata, err := EncodeDefaultCall(transfer, seller)
	if err != nil {
		return Encoded{}, err
	}
	pattern, err := EncodeReplacementPattern(transfer, KindReplaceable)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{Target: transfer.Target, Calldata: calldata, ReplacementPattern: pattern}, nil
}

// EncodeBuy encodes the buyer's side of a transfer. The buyer is the
// destination and every Owner input is marked for the seller to fill in.
func EncodeBuy(enc TransferEncodable, asset types.WyvernAsset, buyer common.Address) (Encoded, error) {
	transfer := enc.Transfer(asset)

	var replaceables, owners int
	params := make([]any, len(transfer.Inputs))
	for i, in := range transfer.Inputs {
		switch in.Kind {
		case KindReplaceable:
			replaceables++
			params[i] = buyer
		case KindOwner:
			owners++
			params[i] = DefaultValue(in.Type)
		default:
			v, err := fixedValue(transfer, in)
			if err != nil {
				return Encoded{}, err
			}
			params[i] = v
		}
	}
	if replaceables != 1 {
		return Encoded{}, errors.Errorf("Only 1 input can match transfer destination, but instead %d did", replaceables)
	}

	calldata, err := EncodeCall(transfer, params)
	if err != nil {
		return Encoded{}, err
	}
	pattern := []byte{}
	if owners > 0 {
		if pattern, err = EncodeReplacementPattern(transfer, KindOwner); err != nil {
			return Encoded{}, err
		}
	}
	return Encoded{Target: transfer.Target, Calldata: calldata, ReplacementPattern: pattern}, nil
}

type atomicCall struct {
	target   common.Address
	calldata []byte
	pattern  []byte
}

// atomicizeHeaderLength is the number of calldata bytes before the
// concatenated calls of an atomicize call with n calls.
func atomicizeHeaderLength(n int) int {
	return 4 + 4*32 + 3*(1+n)*32 + 32
}

func atomicize(atomicizer common.Address, calls []atomicCall, withPattern bool) (Encoded, error) {
	addrs := make([]common.Address, len(calls))
	values := make([]*big.Int, len(calls))
	lengths := make([]*big.Int, len(calls))
	var data, patterns []byte
	for i, c := range calls {
		addrs[i] = c.target
		values[i] = new(big.Int)
		lengths[i] = big.NewInt(int64(len(c.calldata)))
		data = append(data, c.calldata...)
		patterns = append(patterns, c.pattern...)
	}

	calldata, err := EncodeCall(Atomicize(atomicizer), []any{addrs, values, lengths, data})
	if err != nil {
		return Encoded{}, err
	}
	out := Encoded{Target: atomicizer, Calldata: calldata}
	if !withPattern {
		return out, nil
	}

	mask := make([]byte, len(calldata))
	start := atomicizeHeaderLength(len(calls))
	if start+len(patterns) > len(mask) {
		return Encoded{}, errors.Errorf("Invalid calldata: replacement pattern of %d bytes does not fit %d bytes of calls", len(patterns), len(data))
	}
	copy(mask[start:], patterns)
	out.ReplacementPattern = mask
	return out, nil
}

func constructionError(err error) error {
	return errors.Errorf("Failed to construct your order: likely something strange about this type of item. OpenSea has been notified. Please contact us in Discord! Original error: %v", err)
}

func encodeAtomicized(encs []TransferEncodable, assets []types.WyvernAsset, address, atomicizer common.Address, side types.Side) (Encoded, error) {
	if len(encs) != len(assets) {
		return Encoded{}, constructionError(errors.Errorf("got %d schemas for %d assets", len(encs), len(assets)))
	}

	calls := make([]atomicCall, len(assets))
	for i, asset := range assets {
		var (
			encoded Encoded
			err     error
			kind    = KindReplaceable
		)
		if side == types.SideSell {
			encoded, err = EncodeSell(encs[i], asset, address)
		} else {
			encoded, err = EncodeBuy(encs[i], asset, address)
			kind = KindOwner
		}
		if err != nil {
			return Encoded{}, constructionError(errors.Wrapf(err, "%s asset %s/%s", encs[i].Name(), types.LowerHex(asset.Address), asset.IDOrZero()))
		}
		// Sub-patterns span the full calldata even when a buy side has no
		// Owner inputs.
		pattern, err := EncodeReplacementPattern(encs[i].Transfer(asset), kind)
		if err != nil {
			return Encoded{}, constructionError(errors.Wrapf(err, "%s asset %s/%s", encs[i].Name(), types.LowerHex(asset.Address), asset.IDOrZero()))
		}
		calls[i] = atomicCall{target: encoded.Target, calldata: encoded.Calldata, pattern: pattern}
	}

	out, err := atomicize(atomicizer, calls, true)
	if err != nil {
		return Encoded{}, constructionError(err)
	}
	return out, nil
}

// EncodeAtomicizedSell encodes the seller's side of a bundle as one atomicizer call.
func EncodeAtomicizedSell(encs []TransferEncodable, assets []types.WyvernAsset, seller, atomicizer common.Address) (Encoded, error) {
	return encodeAtomicized(encs, assets, seller, atomicizer, types.SideSell)
}

// EncodeAtomicizedBuy encodes the buyer's side of a bundle as one atomicizer call.
func EncodeAtomicizedBuy(encs []TransferEncodable, assets []types.WyvernAsset, buyer, atomicizer common.Address) (Encoded, error) {
	return encodeAtomicized(encs, assets, buyer, atomicizer, types.SideBuy)
}

// EncodeAtomicizedTransfer encodes a direct transfer of several assets. The
// result has no replacement pattern.
func EncodeAtomicizedTransfer(encs []TransferEncodable, assets []types.WyvernAsset, from, to, atomicizer common.Address) (Encoded, error) {
	if len(encs) != len(assets) {
		return Encoded{}, errors.Errorf("got %d schemas for %d assets", len(encs), len(assets))
	}
	calls := make([]atomicCall, len(assets))
	for i, asset := range assets {
		transfer := encs[i].Transfer(asset)
		calldata, err := EncodeTransferCall(transfer, from, to)
		if err != nil {
			return Encoded{}, err
		}
		calls[i] = atomicCall{target: transfer.Target, calldata: calldata}
	}
	return atomicize(atomicizer, calls, false)
}

// EncodeProxyCall wraps calldata for execution through a user proxy. With
// shouldAssert the proxy reverts when the inner call fails.
func EncodeProxyCall(target common.Address, howToCall types.HowToCall, calldata []byte, shouldAssert bool) ([]byte, error) {
	fn := ProxyCall(common.Address{})
	if shouldAssert {
		fn = ProxyAssertCall(common.Address{})
	}
	return EncodeCall(fn, []any{target, uint8(howToCall), calldata})
}
