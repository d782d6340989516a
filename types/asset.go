package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Asset identifies a tradeable unit. TokenID is nil for purely fungible tokens.
type Asset struct {
	TokenAddress common.Address
	TokenID      *big.Int
	SchemaName   SchemaName
	Decimals     int32
	Name         string
	Version      TokenStandardVersion
}

func (a Asset) String() string {
	if a.TokenID == nil {
		return LowerHex(a.TokenAddress)
	}
	return fmt.Sprintf("%s/%s", LowerHex(a.TokenAddress), a.TokenID)
}

// WyvernAsset is the contract-ready projection of an Asset. Quantity is in
// base units.
type WyvernAsset struct {
	ID       *big.Int
	Address  common.Address
	Quantity *big.Int
	// Name is only set for assets identified by name, such as ENS names.
	Name string
}

// NewWyvernAsset projects asset with the given base-unit quantity. A nil
// quantity means one unit.
func NewWyvernAsset(asset Asset, quantity *big.Int) WyvernAsset {
	if quantity == nil {
		quantity = big.NewInt(1)
	}
	var id *big.Int
	if asset.TokenID != nil {
		id = new(big.Int).Set(asset.TokenID)
	}
	wy := WyvernAsset{
		ID:       id,
		Address:  asset.TokenAddress,
		Quantity: new(big.Int).Set(quantity),
	}
	if asset.SchemaName == SchemaENSShortNameAuction {
		wy.Name = asset.Name
	}
	return wy
}

// IDOrZero returns the token id, treating a fungible asset as id 0.
func (a WyvernAsset) IDOrZero() *big.Int {
	if a.ID == nil {
		return new(big.Int)
	}
	return a.ID
}

func (a WyvernAsset) key() string {
	if a.Name != "" {
		return LowerHex(a.Address) + "-" + a.Name
	}
	return LowerHex(a.Address) + "-" + a.IDOrZero().String()
}

type wyvernAssetJSON struct {
	ID       string `json:"id,omitempty"`
	Address  string `json:"address"`
	Quantity string `json:"quantity,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (a WyvernAsset) MarshalJSON() ([]byte, error) {
	out := wyvernAssetJSON{Address: LowerHex(a.Address), Name: a.Name}
	if a.ID != nil {
		out.ID = a.ID.String()
	}
	if a.Quantity != nil {
		out.Quantity = a.Quantity.String()
	}
	return json.Marshal(out)
}

func (a *WyvernAsset) UnmarshalJSON(b []byte) error {
	var in wyvernAssetJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if !common.IsHexAddress(in.Address) {
		return errors.Errorf("invalid asset address %q", in.Address)
	}
	a.Address = common.HexToAddress(in.Address)
	a.Name = in.Name
	a.ID = nil
	if in.ID != "" {
		id, ok := new(big.Int).SetString(in.ID, 10)
		if !ok {
			return errors.Errorf("invalid asset id %q", in.ID)
		}
		a.ID = id
	}
	a.Quantity = big.NewInt(1)
	if in.Quantity != "" {
		q, ok := new(big.Int).SetString(in.Quantity, 10)
		if !ok {
			return errors.Errorf("invalid asset quantity %q", in.Quantity)
		}
		a.Quantity = q
	}
	return nil
}

// Bundle is an ordered set of assets traded together through the atomicizer.
// Assets and Schemas are parallel slices.
type Bundle struct {
	Assets       []WyvernAsset `json:"assets"`
	Schemas      []SchemaName  `json:"schemas"`
	Name         string        `json:"name,omitempty"`
	Description  string        `json:"description,omitempty"`
	ExternalLink string        `json:"external_link,omitempty"`
}

// NewWyvernBundle projects assets into a bundle sorted by (address, id).
// quantities are base units, one per asset.
func NewWyvernBundle(assets []Asset, quantities []*big.Int) (*Bundle, error) {
	if len(assets) != len(quantities) {
		return nil, errors.New("Bundle must have a quantity for every asset")
	}

	type entry struct {
		asset  WyvernAsset
		schema SchemaName
	}
	entries := make([]entry, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for i, a := range assets {
		wy := NewWyvernAsset(a, quantities[i])
		if _, dup := seen[wy.key()]; dup {
			return nil, errors.New("Bundle can't contain duplicate assets")
		}
		seen[wy.key()] = struct{}{}
		entries[i] = entry{asset: wy, schema: a.SchemaName}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ai, aj := LowerHex(entries[i].asset.Address), LowerHex(entries[j].asset.Address)
		if ai != aj {
			return strings.Compare(ai, aj) < 0
		}
		return entries[i].asset.IDOrZero().Cmp(entries[j].asset.IDOrZero()) < 0
	})

	b := &Bundle{
		Assets:  make([]WyvernAsset, len(entries)),
		Schemas: make([]SchemaName, len(entries)),
	}
	for i, e := range entries {
		b.Assets[i] = e.asset
		b.Schemas[i] = e.schema
	}
	return b, nil
}
