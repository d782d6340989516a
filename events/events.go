// Package events is the in-process publish/subscribe bus for order and
// transaction lifecycle events.
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/wyvern-sdk-go/types"
)

// Type names an event.
type Type string

const (
	InitializeAccount Type = "InitializeAccount"

	WrapEth    Type = "WrapEth"
	UnwrapWeth Type = "UnwrapWeth"

	TransferOne Type = "TransferOne"
	TransferAll Type = "TransferAll"

	ApproveAsset      Type = "ApproveAsset"
	ApproveAllAssets  Type = "ApproveAllAssets"
	ApproveCurrency   Type = "ApproveCurrency"
	UnapproveCurrency Type = "UnapproveCurrency"

	CreateOrder  Type = "CreateOrder"
	OrderDenied  Type = "OrderDenied"
	ApproveOrder Type = "ApproveOrder"
	CancelOrder  Type = "CancelOrder"
	MatchOrders  Type = "MatchOrders"

	TransactionCreated   Type = "TransactionCreated"
	TransactionConfirmed Type = "TransactionConfirmed"
	TransactionFailed    Type = "TransactionFailed"
	TransactionDenied    Type = "TransactionDenied"

	ItemListed      Type = "ItemListed"
	ItemSold        Type = "ItemSold"
	ItemTransferred Type = "ItemTransferred"
	ItemReceivedBid Type = "ItemReceivedBid"
	ItemCancelled   Type = "ItemCancelled"
)

// Event is implemented only by the payload types of this package, so a type
// switch over them is exhaustive.
type Event interface {
	Type() Type
	event()
}

type sealed struct{}

func (sealed) event() {}

type InitializeAccountEvent struct {
	sealed
	AccountAddress common.Address
}

func (InitializeAccountEvent) Type() Type { return InitializeAccount }

type WrapEthEvent struct {
	sealed
	AccountAddress common.Address
	Amount         *big.Int
}

func (WrapEthEvent) Type() Type { return WrapEth }

type UnwrapWethEvent struct {
	sealed
	AccountAddress common.Address
	Amount         *big.Int
}

func (UnwrapWethEvent) Type() Type { return UnwrapWeth }

type TransferOneEvent struct {
	sealed
	AccountAddress common.Address
	ToAddress      common.Address
	Asset          types.WyvernAsset
}

func (TransferOneEvent) Type() Type { return TransferOne }

type TransferAllEvent struct {
	sealed
	AccountAddress common.Address
	ToAddress      common.Address
	Assets         []types.WyvernAsset
}

func (TransferAllEvent) Type() Type { return TransferAll }

// ApproveAssetEvent is a single-token approval. TokenID is nil when the whole
// contract is being approved through ApproveAllAssetsEvent instead.
type ApproveAssetEvent struct {
	sealed
	AccountAddress  common.Address
	ProxyAddress    common.Address
	ContractAddress common.Address
	TokenID         *big.Int
}

func (ApproveAssetEvent) Type() Type { return ApproveAsset }

type ApproveAllAssetsEvent struct {
	sealed
	AccountAddress  common.Address
	ProxyAddress    common.Address
	ContractAddress common.Address
}

func (ApproveAllAssetsEvent) Type() Type { return ApproveAllAssets }

type ApproveCurrencyEvent struct {
	sealed
	AccountAddress  common.Address
	ContractAddress common.Address
	ProxyAddress    common.Address
}

func (ApproveCurrencyEvent) Type() Type { return ApproveCurrency }

type UnapproveCurrencyEvent struct {
	sealed
	AccountAddress  common.Address
	ContractAddress common.Address
	ProxyAddress    common.Address
}

func (UnapproveCurrencyEvent) Type() Type { return UnapproveCurrency }

type CreateOrderEvent struct {
	sealed
	AccountAddress common.Address
	Order          *types.Order
}

func (CreateOrderEvent) Type() Type { return CreateOrder }

type OrderDeniedEvent struct {
	sealed
	AccountAddress common.Address
	Order          *types.Order
}

func (OrderDeniedEvent) Type() Type { return OrderDenied }

type ApproveOrderEvent struct {
	sealed
	AccountAddress common.Address
	Order          *types.Order
}

func (ApproveOrderEvent) Type() Type { return ApproveOrder }

type CancelOrderEvent struct {
	sealed
	AccountAddress common.Address
	Order          *types.Order
}

func (CancelOrderEvent) Type() Type { return CancelOrder }

type MatchOrdersEvent struct {
	sealed
	AccountAddress common.Address
	Buy            *types.Order
	Sell           *types.Order
	MatchMetadata  common.Hash
}

func (MatchOrdersEvent) Type() Type { return MatchOrders }

// TransactionCreatedEvent is dispatched once a transaction hash is known.
// Action is the event type of the operation that sent it.
type TransactionCreatedEvent struct {
	sealed
	TransactionHash common.Hash
	Action          Type
}

func (TransactionCreatedEvent) Type() Type { return TransactionCreated }

type TransactionConfirmedEvent struct {
	sealed
	TransactionHash common.Hash
	Action          Type
}

func (TransactionConfirmedEvent) Type() Type { return TransactionConfirmed }

type TransactionFailedEvent struct {
	sealed
	TransactionHash common.Hash
	Action          Type
	Err             error
}

func (TransactionFailedEvent) Type() Type { return TransactionFailed }

type TransactionDeniedEvent struct {
	sealed
	AccountAddress common.Address
	Err            error
}

func (TransactionDeniedEvent) Type() Type { return TransactionDenied }

// ItemEvent is the common payload of marketplace stream events.
type ItemEvent struct {
	CollectionSlug string
	ItemName       string
	TokenAddress   common.Address
	TokenID        *big.Int
	// Raw is the undecoded payload body.
	Raw []byte
}

type ItemListedEvent struct {
	sealed
	ItemEvent
}

func (ItemListedEvent) Type() Type { return ItemListed }

type ItemSoldEvent struct {
	sealed
	ItemEvent
}

func (ItemSoldEvent) Type() Type { return ItemSold }

type ItemTransferredEvent struct {
	sealed
	ItemEvent
}

func (ItemTransferredEvent) Type() Type { return ItemTransferred }

type ItemReceivedBidEvent struct {
	sealed
	ItemEvent
}

func (ItemReceivedBidEvent) Type() Type { return ItemReceivedBid }

type ItemCancelledEvent struct {
	sealed
	ItemEvent
}

func (ItemCancelledEvent) Type() Type { return ItemCancelled }
