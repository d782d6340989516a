package types

import (
	"fmt"
	"strings"
)

// Side is the side of an order
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the counterparty side.
func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

// SaleKind selects between a fixed price and a linearly decaying price
type SaleKind uint8

const (
	SaleKindFixedPrice SaleKind = iota
	SaleKindDutchAuction
)

func (k SaleKind) String() string {
	if k == SaleKindDutchAuction {
		return "dutch"
	}
	return "fixed"
}

// HowToCall is the call type the proxy uses for the order target
type HowToCall uint8

const (
	HowToCallCall HowToCall = iota
	HowToCallDelegateCall
)

// FeeMethod is the fee model of an order
type FeeMethod uint8

const (
	FeeMethodProtocolFee FeeMethod = iota
	FeeMethodSplitFee
)

// TokenStandardVersion distinguishes old ERC721 implementations that only
// expose transfer(to, id).
type TokenStandardVersion string

const (
	TokenStandardUnsupported TokenStandardVersion = "unsupported"
	TokenStandardLocked      TokenStandardVersion = "locked"
	TokenStandardEnjin       TokenStandardVersion = "1155-1.0"
	TokenStandardERC20       TokenStandardVersion = "1.0"
	TokenStandardERC721v1    TokenStandardVersion = "1.0"
	TokenStandardERC721v2    TokenStandardVersion = "2.0"
	TokenStandardERC721v3    TokenStandardVersion = "3.0"
)

// SchemaName identifies the transfer interface an asset contract implements.
type SchemaName uint8

const (
	SchemaUnknown SchemaName = iota
	SchemaERC721
	SchemaERC1155
	SchemaERC20
	SchemaLegacyEnjin
	SchemaENSShortNameAuction
)

var schemaNames = map[SchemaName]string{
	SchemaERC721:              "ERC721",
	SchemaERC1155:             "ERC1155",
	SchemaERC20:               "ERC20",
	SchemaLegacyEnjin:         "Enjin",
	SchemaENSShortNameAuction: "ENSShortNameAuction",
}

func (n SchemaName) String() string {
	if s, ok := schemaNames[n]; ok {
		return s
	}
	return fmt.Sprintf("SchemaName(%d)", uint8(n))
}

// IsFungible reports whether assets of this schema are interchangeable units.
func (n SchemaName) IsFungible() bool {
	return n == SchemaERC20
}

// ParseSchemaName maps the wire name of a schema to its tag. Matching is case
// insensitive; "LegacyEnjin" is accepted as an alias of "Enjin".
func ParseSchemaName(s string) (SchemaName, error) {
	if strings.EqualFold(s, "LegacyEnjin") {
		return SchemaLegacyEnjin, nil
	}
	for n, name := range schemaNames {
		if strings.EqualFold(name, s) {
			return n, nil
		}
	}
	return SchemaUnknown, fmt.Errorf("unknown schema name %q", s)
}

func (n SchemaName) MarshalText() ([]byte, error) {
	if n == SchemaUnknown {
		return []byte{}, nil
	}
	s, ok := schemaNames[n]
	if !ok {
		return nil, fmt.Errorf("unknown schema name %d", uint8(n))
	}
	return []byte(s), nil
}

func (n *SchemaName) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*n = SchemaUnknown
		return nil
	}
	parsed, err := ParseSchemaName(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
