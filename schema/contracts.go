package schema

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// Atomicize is the atomicizer entry point that performs several calls in one
// transaction.
func Atomicize(atomicizer common.Address) Function {
	return Function{
		Name:   "atomicize",
		Target: atomicizer,
		Inputs: []Input{
			{Name: "addrs", Type: "address[]", Kind: KindData},
			{Name: "values", Type: "uint256[]", Kind: KindData},
			{Name: "calldataLengths", Type: "uint256[]", Kind: KindData},
			{Name: "calldatas", Type: "bytes", Kind: KindData},
		},
	}
}

func proxyFunction(name string, proxy common.Address) Function {
	return Function{
		Name:   name,
		Target: proxy,
		Inputs: []Input{
			{Name: "dest", Type: "address", Kind: KindData},
			{Name: "howToCall", Type: "uint8", Kind: KindData},
			{Name: "calldata", Type: "bytes", Kind: KindData},
		},
		Outputs: []Output{{Name: "success", Type: "bool", Kind: KindData}},
	}
}

// ProxyCall is the non-asserting call entry point of a user proxy.
func ProxyCall(proxy common.Address) Function { return proxyFunction("proxy", proxy) }

// ProxyAssertCall reverts when the proxied call fails.
func ProxyAssertCall(proxy common.Address) Function {
	f := proxyFunction("proxyAssert", proxy)
	f.Outputs = nil
	return f
}

// LegacyERC721Transfer is transfer(to, tokenId), implemented by CryptoKitties
// and other pre-standard ERC721 contracts instead of transferFrom.
func LegacyERC721Transfer(asset types.WyvernAsset) Function {
	return Function{
		Name:   "transfer",
		Target: asset.Address,
		Inputs: []Input{
			{Name: "_to", Type: "address", Kind: KindReplaceable},
			{Name: "_tokenId", Type: "uint256", Kind: KindAsset, Value: idValue(asset)},
		},
	}
}

// ERC20Transfer is the sender-initiated transfer(to, amount).
func ERC20Transfer(asset types.WyvernAsset) Function {
	var amount any = big.NewInt(1)
	if asset.Quantity != nil {
		amount = new(big.Int).Set(asset.Quantity)
	}
	return Function{
		Name:   "transfer",
		Target: asset.Address,
		Inputs: []Input{
			{Name: "_to", Type: "address", Kind: KindReplaceable},
			{Name: "_amount", Type: "uint256", Kind: KindCount, Value: amount},
		},
	}
}
