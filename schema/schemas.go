package schema

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// TransferEncodable describes how assets of one token standard are
// transferred, owned and counted.
type TransferEncodable interface {
	Name() types.SchemaName
	AssetFromFields(asset types.Asset, quantity *big.Int) types.WyvernAsset
	Transfer(asset types.WyvernAsset) Function
	// OwnerOf returns a call whose Owner output is the holder of the asset.
	OwnerOf(asset types.WyvernAsset) (Function, bool)
	// CountOf returns a call whose Count output is the balance of an owner.
	CountOf(asset types.WyvernAsset) (Function, bool)
}

// ForSchema selects the encoder for a schema.
func ForSchema(name types.SchemaName) (TransferEncodable, error) {
	switch name {
	case types.SchemaERC721:
		return erc721{}, nil
	case types.SchemaERC1155:
		return erc1155{}, nil
	case types.SchemaERC20:
		return erc20{}, nil
	case types.SchemaLegacyEnjin:
		return legacyEnjin{}, nil
	case types.SchemaENSShortNameAuction:
		return ensShortNameAuction{}, nil
	}
	return nil, errors.Errorf("Trading for this asset (%s) is not yet supported. Please contact us or check back later!", name)
}

// ForSchemas selects one encoder per schema.
func ForSchemas(names []types.SchemaName) ([]TransferEncodable, error) {
	out := make([]TransferEncodable, len(names))
	for i, n := range names {
		enc, err := ForSchema(n)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func idValue(asset types.WyvernAsset) any {
	if asset.ID == nil {
		return nil
	}
	return new(big.Int).Set(asset.ID)
}

func quantityValue(asset types.WyvernAsset) any {
	if asset.Quantity == nil {
		return big.NewInt(1)
	}
	return new(big.Int).Set(asset.Quantity)
}

func defaultAssetFromFields(asset types.Asset, quantity *big.Int) types.WyvernAsset {
	return types.NewWyvernAsset(asset, quantity)
}

type erc721 struct{}

func (erc721) Name() types.SchemaName { return types.SchemaERC721 }

func (erc721) AssetFromFields(asset types.Asset, quantity *big.Int) types.WyvernAsset {
	return defaultAssetFromFields(asset, big.NewInt(1))
}

func (erc721) Transfer(asset types.WyvernAsset) Function {
	return Function{
		Name:   "transferFrom",
		Target: asset.Address,
		Inputs: []Input{
			{Name: "_from", Type: "address", Kind: KindOwner},
			{Name: "_to", Type: "address", Kind: KindReplaceable},
			{Name: "_tokenId", Type: "uint256", Kind: KindAsset, Value: idValue(asset)},
		},
	}
}

func (erc721) OwnerOf(asset types.WyvernAsset) (Function, bool) {
	return Function{
		Name:     "ownerOf",
		Target:   asset.Address,
		Constant: true,
		Inputs: []Input{
			{Name: "_tokenId", Type: "uint256", Kind: KindAsset, Value: idValue(asset)},
		},
		Outputs: []Output{{Name: "owner", Type: "address", Kind: KindOwner}},
	}, true
}

func (erc721) CountOf(types.WyvernAsset) (Function, bool) { return Function{}, false }

type erc1155 struct{}

func (erc1155) Name() types.SchemaName { return types.SchemaERC1155 }

func (erc1155) AssetFromFields(asset types.Asset, quantity *big.Int) types.WyvernAsset {
	return defaultAssetFromFields(asset, quantity)
}

func (erc1155) Transfer(asset types.WyvernAsset) Function {
	return Function{
		Name:   "safeTransferFrom",
		Target: asset.Address,
		Inputs: []Input{
			{Name: "_from", Type: "address", Kind: KindOwner},
			{Name: "_to", Type: "address", Kind: KindReplaceable},
			{Name: "_id", Type: "uint256", Kind: KindAsset, Value: idValue(asset)},
			{Name: "_value", Type: "uint256", Kind: KindCount, Value: quantityValue(asset)},
			{Name: "_data", Type: "bytes", Kind: KindData, Value: []byte{}},
		},
	}
}

func (erc1155) OwnerOf(types.WyvernAsset) (Function, bool) { return Function{}, false }

func (erc1155) CountOf(asset types.WyvernAsset) (Function, bool) {
	return Function{
		Name:     "balanceOf",
		Target:   asset.Address,
		Constant: true,
		Inputs: []Input{
			{Name: "_owner", Type: "address", Kind: KindOwner},
			{Name: "_id", Type: "uint256", Kind: KindAsset, Value: idValue(asset)},
		},
		Outputs: []Output{{Name: "balance", Type: "uint256", Kind: KindCount}},
	}, true
}

type erc20 struct{}

func (erc20) Name() types.SchemaName { return types.SchemaERC20 }

func (erc20) AssetFromFields(asset types.Asset, quantity *big.Int) types.WyvernAsset {
	wy := defaultAssetFromFields(asset, quantity)
	wy.ID = nil
	return wy
}

func (erc20) Transfer(asset types.WyvernAsset) Function {
	return Function{
		Name:   "transferFrom",
		Target: asset.Address,
		Inputs: []Input{
			{Name: "_from", Type: "address", Kind: KindOwner},
			{Name: "_to", Type: "address", Kind: KindReplaceable},
			{Name: "_value", Type: "uint256", Kind: KindCount, Value: quantityValue(asset)},
		},
	}
}

func (erc20) OwnerOf(types.WyvernAsset) (Function, bool) { return Function{}, false }

func (erc20) CountOf(asset types.WyvernAsset) (Function, bool) {
	return Function{
		Name:     "balanceOf",
		Target:   asset.Address,
		Constant: true,
		Inputs: []Input{
			{Name: "_owner", Type: "address", Kind: KindOwner},
		},
		Outputs: []Output{{Name: "balance", Type: "uint256", Kind: KindCount}},
	}, true
}

// legacyEnjin is the pre-ERC1155 Enjin multi-token contract. Non-fungible
// items also expose ownerOf.
type legacyEnjin struct{ erc1155 }

func (legacyEnjin) Name() types.SchemaName { return types.SchemaLegacyEnjin }

func (legacyEnjin) OwnerOf(asset types.WyvernAsset) (Function, bool) {
	return Function{
		Name:     "ownerOf",
		Target:   asset.Address,
		Constant: true,
		Inputs: []Input{
			{Name: "_id", Type: "uint256", Kind: KindAsset, Value: idValue(asset)},
		},
		Outputs: []Output{{Name: "owner", Type: "address", Kind: KindOwner}},
	}, true
}

// ensShortNameAuction transfers a short ENS name by registering it to the buyer.
type ensShortNameAuction struct{}

func (ensShortNameAuction) Name() types.SchemaName { return types.SchemaENSShortNameAuction }

func (ensShortNameAuction) AssetFromFields(asset types.Asset, _ *big.Int) types.WyvernAsset {
	wy := types.NewWyvernAsset(asset, big.NewInt(1))
	wy.Name = asset.Name
	return wy
}

func (ensShortNameAuction) Transfer(asset types.WyvernAsset) Function {
	var name any
	if asset.Name != "" {
		name = asset.Name
	}
	return Function{
		Name:   "register",
		Target: asset.Address,
		Inputs: []Input{
			{Name: "name", Type: "string", Kind: KindData, Value: name},
			{Name: "owner", Type: "address", Kind: KindReplaceable},
		},
	}
}

func (ensShortNameAuction) OwnerOf(types.WyvernAsset) (Function, bool) { return Function{}, false }

func (ensShortNameAuction) CountOf(types.WyvernAsset) (Function, bool) { return Function{}, false }
