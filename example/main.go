// Example usage of the Wyvern SDK Go
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	wyvern "github.com/kaifufi/wyvern-sdk-go"
	"github.com/kaifufi/wyvern-sdk-go/config"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

func main() {
	// Settings come from WYVERN_* environment variables and an optional .env file
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := wyvern.NewClientFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	account := common.HexToAddress(os.Getenv("ACCOUNT_ADDRESS"))
	asset := types.Asset{
		TokenAddress: common.HexToAddress("0x06012c8cf97bead5deae237070f9587f8e7a266d"), // Replace with actual contract
		TokenID:      big.NewInt(1),                                                     // Replace with actual token ID
		SchemaName:   types.SchemaERC721,
	}

	// Log every transaction the client sends
	client.Bus().AddListener(events.TransactionCreated, func(e events.Event) {
		created := e.(events.TransactionCreatedEvent)
		fmt.Printf("Transaction %s sent: %s\n", created.TransactionHash.Hex(), created.Action)
	}, false)

	// Example: Get payment tokens
	fmt.Println("Fetching payment tokens...")
	tokens, err := client.GetFungibleTokens(ctx, wyvern.FungibleTokenFilter{Symbol: "WETH"})
	if err != nil {
		log.Printf("Failed to get payment tokens: %v", err)
	} else {
		fmt.Printf("Payment tokens: %+v\n", tokens)
	}

	// Example: Check ownership
	fmt.Println("\nFetching asset balance...")
	balance, err := client.GetAssetBalance(ctx, account, asset)
	if err != nil {
		log.Printf("Failed to get balance: %v", err)
	} else {
		fmt.Printf("Balance: %s\n", balance)
	}

	// Example: Wrap ether to make offers
	fmt.Println("\nWrapping ETH...")
	hash, err := client.WrapEth(ctx, decimal.RequireFromString("0.1"), account)
	if err != nil {
		log.Printf("Failed to wrap ETH: %v", err)
	} else {
		fmt.Printf("Wrap transaction: %s\n", hash.Hex())
	}

	// Example: List the asset for a day
	fmt.Println("\nCreating sell order...")
	order, err := client.CreateSellOrder(ctx, wyvern.SellOrderParams{
		Asset:          asset,
		AccountAddress: account,
		StartAmount:    decimal.RequireFromString("1.5"),
		ExpirationTime: time.Now().Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		log.Printf("Failed to create sell order: %v", err)
	} else {
		fmt.Printf("Order posted: %s\n", order.Hash.Hex())
	}

	// Example: Follow a collection
	if s := client.Stream(); s != nil {
		client.Bus().AddListener(events.ItemListed, func(e events.Event) {
			listed := e.(events.ItemListedEvent)
			fmt.Printf("Listed: %s #%s\n", listed.ItemName, listed.TokenID)
		}, false)
		if err := s.Connect(ctx); err != nil {
			log.Printf("Failed to connect stream: %v", err)
			return
		}
		if err := s.Subscribe("cryptokitties"); err != nil {
			log.Printf("Failed to subscribe: %v", err)
			return
		}
		fmt.Println("\nWaiting for events, press Ctrl+C to exit...")
		<-ctx.Done()
	}
}
