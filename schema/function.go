// Package schema encodes asset transfers into the calldata and replacement
// patterns the Wyvern exchange matches on.
package schema

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Kind tags the role a function input plays in a transfer.
type Kind uint8

const (
	// KindReplaceable is the transfer destination, filled in by the buyer.
	KindReplaceable Kind = iota
	// KindOwner is the transfer source.
	KindOwner
	// KindAsset is fixed by the asset, usually a token id.
	KindAsset
	// KindCount is a fungible quantity.
	KindCount
	// KindData is opaque call data.
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindReplaceable:
		return "replaceable"
	case KindOwner:
		return "owner"
	case KindAsset:
		return "asset"
	case KindCount:
		return "count"
	case KindData:
		return "data"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ErrMissingValue is returned when a fixed input has no value to encode.
var ErrMissingValue = errors.New("missing value for function input")

// Input is an annotated function parameter. Value holds the go-ethereum ABI
// representation for fixed kinds and is nil for Replaceable and Owner.
type Input struct {
	Name  string
	Type  string
	Kind  Kind
	Value any
}

// Output is an annotated return value.
type Output struct {
	Name string
	Type string
	Kind Kind
}

// Function is a contract call annotated with the role of each input.
type Function struct {
	Name     string
	Target   common.Address
	Inputs   []Input
	Outputs  []Output
	Constant bool
	Payable  bool
}

// Signature returns the canonical signature, e.g. "transferFrom(address,address,uint256)".
func (f Function) Signature() string {
	types := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		types[i] = in.Type
	}
	return f.Name + "(" + strings.Join(types, ",") + ")"
}

// Selector returns the 4-byte method id.
func (f Function) Selector() []byte {
	return crypto.Keccak256([]byte(f.Signature()))[:4]
}

func (f Function) inputArguments() (abi.Arguments, error) {
	args := make(abi.Arguments, len(f.Inputs))
	for i, in := range f.Inputs {
		t, err := abi.NewType(in.Type, "", nil)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: input %s", f.Name, in.Name)
		}
		args[i] = abi.Argument{Name: in.Name, Type: t}
	}
	return args, nil
}

// DecodeOutput unpacks the return data of a call to f.
func (f Function) DecodeOutput(data []byte) ([]any, error) {
	args := make(abi.Arguments, len(f.Outputs))
	for i, out := range f.Outputs {
		t, err := abi.NewType(out.Type, "", nil)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: output %s", f.Name, out.Name)
		}
		args[i] = abi.Argument{Name: out.Name, Type: t}
	}
	return args.Unpack(data)
}

// EncodeCall returns the selector of f followed by the ABI encoding of params.
func EncodeCall(f Function, params []any) ([]byte, error) {
	args, err := f.inputArguments()
	if err != nil {
		return nil, err
	}
	packed, err := args.Pack(params...)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", f.Signature())
	}
	return append(f.Selector(), packed...), nil
}

// DefaultValue is the zero value of an ABI type in its go-ethereum representation.
func DefaultValue(typ string) any {
	switch {
	case typ == "address":
		return common.Address{}
	case typ == "bool":
		return false
	case typ == "string":
		return ""
	case typ == "bytes":
		return []byte{}
	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		return new(big.Int)
	}
	return nil
}

func isDynamic(typ string) bool {
	return typ == "bytes" || typ == "string" || strings.HasSuffix(typ, "[]")
}

func dynamicLength(in Input) (int, error) {
	var n int
	switch v := in.Value.(type) {
	case nil:
		n = 0
	case []byte:
		n = len(v)
	case string:
		n = len(v)
	default:
		return 0, errors.Errorf("unsupported dynamic value %T for input %s", in.Value, in.Name)
	}
	return 32 + (n+31)/32*32, nil
}

// EncodeReplacementPattern returns a bitmask over the calldata of f: 0xff for
// every byte of a static input of the given kind and 0x00 elsewhere,
// including the method selector.
func EncodeReplacementPattern(f Function, replaceKind Kind) ([]byte, error) {
	var head, tail []byte
	for _, in := range f.Inputs {
		if isDynamic(in.Type) {
			if in.Kind == replaceKind {
				return nil, errors.New("Replacement is not supported for dynamic parameters.")
			}
			n, err := dynamicLength(in)
			if err != nil {
				return nil, err
			}
			head = append(head, make([]byte, 32)...)
			tail = append(tail, make([]byte, n)...)
			continue
		}
		word := make([]byte, 32)
		if in.Kind == replaceKind {
			for i := range word {
				word[i] = 0xff
			}
		}
		head = append(head, word...)
	}

	mask := make([]byte, 4, 4+len(head)+len(tail))
	mask = append(mask, head...)
	return append(mask, tail...), nil
}

func fixedValue(f Function, in Input) (any, error) {
	if in.Value == nil {
		return nil, errors.Wrapf(ErrMissingValue, "%s: %s input %s", f.Name, in.Kind, in.Name)
	}
	return in.Value, nil
}

// EncodeDefaultCall encodes f as its owner would: owner in the Owner inputs,
// zero values in the Replaceable inputs and the annotated values elsewhere.
func EncodeDefaultCall(f Function, owner common.Address) ([]byte, error) {
	params := make([]any, len(f.Inputs))
	for i, in := range f.Inputs {
		switch in.Kind {
		case KindReplaceable:
			params[i] = DefaultValue(in.Type)
		case KindOwner:
			params[i] = owner
		default:
			v, err := fixedValue(f, in)
			if err != nil {
				return nil, err
			}
			params[i] = v
		}
	}
	return EncodeCall(f, params)
}

// EncodeTransferCall encodes f moving the asset from one address to another.
func EncodeTransferCall(f Function, from, to common.Address) ([]byte, error) {
	params := make([]any, len(f.Inputs))
	for i, in := range f.Inputs {
		switch in.Kind {
		case KindReplaceable:
			params[i] = to
		case KindOwner:
			params[i] = from
		default:
			if in.Value == nil {
				return nil, errors.Errorf("Unsupported function input kind: %s", in.Kind)
			}
			params[i] = in.Value
		}
	}
	return EncodeCall(f, params)
}
