package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/mo"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func orderAddrs(o *types.UnhashedOrder) [7]common.Address {
	return [7]common.Address{o.Exchange, o.Maker, o.Taker, o.FeeRecipient, o.Target, o.StaticTarget, o.PaymentToken}
}

func orderUints(o *types.UnhashedOrder) [9]*big.Int {
	return [9]*big.Int{
		orZero(o.MakerRelayerFee), orZero(o.TakerRelayerFee), orZero(o.MakerProtocolFee), orZero(o.TakerProtocolFee),
		orZero(o.BasePrice), orZero(o.Extra), orZero(o.ListingTime), orZero(o.ExpirationTime), orZero(o.Salt),
	}
}

func orderEnums(o *types.UnhashedOrder) [4]uint8 {
	return [4]uint8{uint8(o.FeeMethod), uint8(o.Side), uint8(o.SaleKind), uint8(o.HowToCall)}
}

// orderArgs flattens an order into the exchange's single-order parameters.
func orderArgs(o *types.UnhashedOrder) []any {
	e := orderEnums(o)
	return []any{
		orderAddrs(o), orderUints(o), e[0], e[1], e[2], e[3],
		nonNilBytes(o.Calldata), nonNilBytes(o.ReplacementPattern), nonNilBytes(o.StaticExtradata),
	}
}

// matchArgs flattens a buy and a sell into the exchange's pair parameters.
func matchArgs(buy, sell *types.UnhashedOrder) []any {
	var (
		addrs [14]common.Address
		uints [18]*big.Int
		enums [8]uint8
	)
	ba, sa := orderAddrs(buy), orderAddrs(sell)
	copy(addrs[:7], ba[:])
	copy(addrs[7:], sa[:])
	bu, su := orderUints(buy), orderUints(sell)
	copy(uints[:9], bu[:])
	copy(uints[9:], su[:])
	be, se := orderEnums(buy), orderEnums(sell)
	copy(enums[:4], be[:])
	copy(enums[4:], se[:])

	return []any{
		addrs, uints, enums,
		nonNilBytes(buy.Calldata), nonNilBytes(sell.Calldata),
		nonNilBytes(buy.ReplacementPattern), nonNilBytes(sell.ReplacementPattern),
		nonNilBytes(buy.StaticExtradata), nonNilBytes(sell.StaticExtradata),
	}
}

// contract binds an ABI to an address for read-only calls.
type contract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
}

func (c contract) call(ctx context.Context, from common.Address, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}
	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{From: from, To: &c.address, Data: data})
	if err != nil {
		return nil, errors.Wrapf(err, "call %s on %s", method, c.address.Hex())
	}
	out, err := c.abi.Unpack(method, result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s", method)
	}
	return out, nil
}

func (c contract) callBool(ctx context.Context, from common.Address, method string, args ...any) (bool, error) {
	out, err := c.call(ctx, from, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, errors.Errorf("%s: unexpected result %T", method, out[0])
	}
	return v, nil
}

func (c contract) callBig(ctx context.Context, from common.Address, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, from, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("%s: unexpected result %T", method, out[0])
	}
	return v, nil
}

func (c contract) callAddress(ctx context.Context, from common.Address, method string, args ...any) (common.Address, error) {
	out, err := c.call(ctx, from, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("%s: unexpected result %T", method, out[0])
	}
	return v, nil
}

// Exchange is the Wyvern exchange contract.
type Exchange struct {
	contract
}

// NewExchange binds the exchange at address.
func NewExchange(address common.Address, caller Caller) *Exchange {
	return &Exchange{contract{address: address, abi: GetExchangeABI(), caller: caller}}
}

// Address returns the exchange address.
func (e *Exchange) Address() common.Address { return e.address }

// HashOrder asks the exchange for its hash of o.
func (e *Exchange) HashOrder(ctx context.Context, o *types.UnhashedOrder) (common.Hash, error) {
	out, err := e.call(ctx, common.Address{}, "hashOrder_", orderArgs(o)...)
	if err != nil {
		return common.Hash{}, err
	}
	h, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, errors.Errorf("hashOrder_: unexpected result %T", out[0])
	}
	return common.Hash(h), nil
}

func (e *Exchange) ValidateOrderParameters(ctx context.Context, from common.Address, o *types.UnhashedOrder) (bool, error) {
	return e.callBool(ctx, from, "validateOrderParameters_", orderArgs(o)...)
}

// ValidateOrder checks parameters, signature or on-chain approval, and that
// the order is neither cancelled nor filled.
func (e *Exchange) ValidateOrder(ctx context.Context, from common.Address, o *types.Order) (bool, error) {
	sig := o.SignatureOrZero()
	args := append(orderArgs(&o.UnhashedOrder), sig.V, [32]byte(sig.R), [32]byte(sig.S))
	return e.callBool(ctx, from, "validateOrder_", args...)
}

func (e *Exchange) CalculateCurrentPrice(ctx context.Context, o *types.UnhashedOrder) (*big.Int, error) {
	return e.callBig(ctx, common.Address{}, "calculateCurrentPrice_", orderArgs(o)...)
}

func (e *Exchange) OrdersCanMatch(ctx context.Context, from common.Address, buy, sell *types.UnhashedOrder) (bool, error) {
	return e.callBool(ctx, from, "ordersCanMatch_", matchArgs(buy, sell)...)
}

func (e *Exchange) OrderCalldataCanMatch(ctx context.Context, buy, sell *types.UnhashedOrder) (bool, error) {
	return e.callBool(ctx, common.Address{}, "orderCalldataCanMatch",
		nonNilBytes(buy.Calldata), nonNilBytes(buy.ReplacementPattern),
		nonNilBytes(sell.Calldata), nonNilBytes(sell.ReplacementPattern))
}

func (e *Exchange) CancelledOrFinalized(ctx context.Context, hash common.Hash) (bool, error) {
	return e.callBool(ctx, common.Address{}, "cancelledOrFinalized", [32]byte(hash))
}

func (e *Exchange) ApprovedOrders(ctx context.Context, hash common.Hash) (bool, error) {
	return e.callBool(ctx, common.Address{}, "approvedOrders", [32]byte(hash))
}

// PackAtomicMatch encodes atomicMatch_ for a buy and a sell. Missing
// signatures are sent as zero words.
func (e *Exchange) PackAtomicMatch(buy, sell *types.Order, metadata common.Hash) ([]byte, error) {
	bs, ss := buy.SignatureOrZero(), sell.SignatureOrZero()
	args := matchArgs(&buy.UnhashedOrder, &sell.UnhashedOrder)
	args = append(args,
		[2]uint8{bs.V, ss.V},
		[5][32]byte{bs.R, bs.S, ss.R, ss.S, metadata},
	)
	return e.abi.Pack("atomicMatch_", args...)
}

func (e *Exchange) PackApproveOrder(o *types.UnhashedOrder, orderbookInclusionDesired bool) ([]byte, error) {
	args := append(orderArgs(o), orderbookInclusionDesired)
	return e.abi.Pack("approveOrder_", args...)
}

func (e *Exchange) PackCancelOrder(o *types.Order) ([]byte, error) {
	sig := o.SignatureOrZero()
	args := append(orderArgs(&o.UnhashedOrder), sig.V, [32]byte(sig.R), [32]byte(sig.S))
	return e.abi.Pack("cancelOrder_", args...)
}

// ProxyRegistry maps accounts to their authenticated proxies.
type ProxyRegistry struct {
	contract
}

func NewProxyRegistry(address common.Address, caller Caller) *ProxyRegistry {
	return &ProxyRegistry{contract{address: address, abi: GetProxyRegistryABI(), caller: caller}}
}

func (r *ProxyRegistry) Address() common.Address { return r.address }

// Proxy returns the proxy of owner, or the null address when none is registered.
func (r *ProxyRegistry) Proxy(ctx context.Context, owner common.Address) (common.Address, error) {
	return r.callAddress(ctx, owner, "proxies", owner)
}

func (r *ProxyRegistry) PackRegisterProxy() ([]byte, error) {
	return r.abi.Pack("registerProxy")
}

// ERC20BalanceOf returns the token balance of account.
func ERC20BalanceOf(ctx context.Context, c Caller, token, account common.Address) (*big.Int, error) {
	return contract{address: token, abi: GetERC20ABI(), caller: c}.callBig(ctx, account, "balanceOf", account)
}

// ERC20Allowance returns how much spender may move from owner.
func ERC20Allowance(ctx context.Context, c Caller, token, owner, spender common.Address) (*big.Int, error) {
	return contract{address: token, abi: GetERC20ABI(), caller: c}.callBig(ctx, owner, "allowance", owner, spender)
}

func PackERC20Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	return GetERC20ABI().Pack("approve", spender, orZero(amount))
}

// ERC721OwnerOf returns the owner of a non-fungible token.
func ERC721OwnerOf(ctx context.Context, c Caller, token common.Address, tokenID *big.Int) (common.Address, error) {
	return contract{address: token, abi: GetERC721ABI(), caller: c}.callAddress(ctx, common.Address{}, "ownerOf", orZero(tokenID))
}

// IsApprovedForAll checks operator approval without assuming the contract
// implements it: a failed call or undecodable result is None.
func IsApprovedForAll(ctx context.Context, c Caller, token, owner, operator common.Address) mo.Option[bool] {
	approved, err := contract{address: token, abi: GetERC721ABI(), caller: c}.callBool(ctx, owner, "isApprovedForAll", owner, operator)
	if err != nil {
		return mo.None[bool]()
	}
	return mo.Some(approved)
}

func PackSetApprovalForAll(operator common.Address, approved bool) ([]byte, error) {
	return GetERC721ABI().Pack("setApprovalForAll", operator, approved)
}

func PackERC721Approve(to common.Address, tokenID *big.Int) ([]byte, error) {
	return GetERC721ABI().Pack("approve", to, orZero(tokenID))
}

// ApprovedAddress reads the single-token approval through accessor, which is
// getApproved or a non-standard equivalent.
func ApprovedAddress(ctx context.Context, c Caller, token common.Address, accessor string, tokenID *big.Int) (common.Address, error) {
	return contract{address: token, abi: GetERC721ABI(), caller: c}.callAddress(ctx, common.Address{}, accessor, orZero(tokenID))
}

// ERC1155BalanceOf returns the balance of one token id.
func ERC1155BalanceOf(ctx context.Context, c Caller, token, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	return contract{address: token, abi: GetERC1155ABI(), caller: c}.callBig(ctx, owner, "balanceOf", owner, orZero(tokenID))
}

// TransferSettings is the Enjin per-token transfer fee configuration.
type TransferSettings struct {
	TransferType    uint8
	TransferFeeType uint8
	FeeCurrency     *big.Int
	FeeValue        *big.Int
}

// GetTransferSettings reads Enjin's transferSettings for a token id.
func GetTransferSettings(ctx context.Context, c Caller, token, from common.Address, tokenID *big.Int) (TransferSettings, error) {
	out, err := contract{address: token, abi: GetERC1155ABI(), caller: c}.call(ctx, from, "transferSettings", orZero(tokenID))
	if err != nil {
		return TransferSettings{}, err
	}
	if len(out) != 4 {
		return TransferSettings{}, errors.Errorf("transferSettings: got %d values", len(out))
	}
	s := TransferSettings{}
	var ok [4]bool
	s.TransferType, ok[0] = out[0].(uint8)
	s.TransferFeeType, ok[1] = out[1].(uint8)
	s.FeeCurrency, ok[2] = out[2].(*big.Int)
	s.FeeValue, ok[3] = out[3].(*big.Int)
	for i, k := range ok {
		if !k {
			return TransferSettings{}, errors.Errorf("transferSettings: unexpected value %T at %d", out[i], i)
		}
	}
	return s, nil
}

func PackWETHDeposit() ([]byte, error) {
	return GetWETHABI().Pack("deposit")
}

func PackWETHWithdraw(amount *big.Int) ([]byte, error) {
	return GetWETHABI().Pack("withdraw", orZero(amount))
}

// StaticCheckTxOriginExtradata is the static call data that makes an order
// executable only by the hardcoded matcher.
func StaticCheckTxOriginExtradata() []byte {
	return GetStaticCheckTxOriginABI().Methods["succeedIfTxOriginMatchesHardcodedAddress"].ID
}
