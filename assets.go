package wyvern

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"github.com/kaifufi/wyvern-sdk-go/api"
	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/pricing"
	"github.com/kaifufi/wyvern-sdk-go/schema"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

// WrapEth converts amount ether held by account into WETH.
func (c *Client) WrapEth(ctx context.Context, amount decimal.Decimal, account common.Address) (common.Hash, error) {
	wei, err := pricing.ToBaseUnits(amount, pricing.EtherDecimals)
	if err != nil {
		return common.Hash{}, asValidation(err)
	}
	c.bus.Dispatch(events.WrapEthEvent{AccountAddress: account, Amount: wei})

	data, err := chain.PackWETHDeposit()
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "encode deposit")
	}
	hash, err := c.sendTransaction(ctx, account, c.contracts.WETH, data, wei, 0)
	if err != nil {
		return common.Hash{}, err
	}
	return hash, c.confirmTransaction(ctx, hash, events.WrapEth, "Wrapping ETH", nil)
}

// UnwrapWeth converts amount WETH held by account back into ether.
func (c *Client) UnwrapWeth(ctx context.Context, amount decimal.Decimal, account common.Address) (common.Hash, error) {
	wei, err := pricing.ToBaseUnits(amount, pricing.EtherDecimals)
	if err != nil {
		return common.Hash{}, asValidation(err)
	}
	c.bus.Dispatch(events.UnwrapWethEvent{AccountAddress: account, Amount: wei})

	data, err := chain.PackWETHWithdraw(wei)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "encode withdraw")
	}
	hash, err := c.sendTransaction(ctx, account, c.contracts.WETH, data, nil, 0)
	if err != nil {
		return common.Hash{}, err
	}
	return hash, c.confirmTransaction(ctx, hash, events.UnwrapWeth, "Unwrapping W-ETH", nil)
}

// transferFunction picks the transfer entry point for asset. Old ERC721
// contracts such as CryptoKitties only have transfer(to, id), and ERC20s are
// moved by their owner with transfer(to, amount).
func transferFunction(asset types.Asset, quantity *big.Int) (schema.Function, types.WyvernAsset, error) {
	enc, err := schemaFor(asset.SchemaName)
	if err != nil {
		return schema.Function{}, types.WyvernAsset{}, err
	}
	wy := enc.AssetFromFields(asset, quantity)

	isCryptoKitties := wy.Address == types.CryptoKittiesAddress || wy.Address == types.CryptoKittiesRinkebyAddress
	isOldNFT := asset.SchemaName != types.SchemaERC20 &&
		(isCryptoKitties || asset.Version == types.TokenStandardERC721v1 || asset.Version == types.TokenStandardERC721v2)
	switch {
	case asset.SchemaName == types.SchemaERC20:
		return schema.ERC20Transfer(wy), wy, nil
	case isOldNFT:
		return schema.LegacyERC721Transfer(wy), wy, nil
	default:
		return enc.Transfer(wy), wy, nil
	}
}

// Transfer sends one asset from FromAddress to ToAddress.
func (c *Client) Transfer(ctx context.Context, p TransferParams) (common.Hash, error) {
	fn, wy, err := transferFunction(p.Asset, p.Quantity)
	if err != nil {
		return common.Hash{}, err
	}
	c.bus.Dispatch(events.TransferOneEvent{AccountAddress: p.FromAddress, ToAddress: p.ToAddress, Asset: wy})

	data, err := schema.EncodeTransferCall(fn, p.FromAddress, p.ToAddress)
	if err != nil {
		return common.Hash{}, asValidation(err)
	}
	hash, err := c.sendTransaction(ctx, p.FromAddress, fn.Target, data, nil, 0)
	if err != nil {
		return common.Hash{}, err
	}
	return hash, c.confirmTransaction(ctx, hash, events.TransferOne, "Transferring asset", nil)
}

// TransferAll sends several assets in one transaction through the sender's
// proxy, registering the proxy and approving the assets first when needed.
func (c *Client) TransferAll(ctx context.Context, p TransferAllParams) (common.Hash, error) {
	if len(p.Assets) == 0 {
		return common.Hash{}, &ValidationError{Message: "Need at least one asset to transfer"}
	}
	if len(p.Quantities) > 0 && len(p.Quantities) != len(p.Assets) {
		return common.Hash{}, validationError("got %d quantities for %d assets", len(p.Quantities), len(p.Assets))
	}

	names := make([]types.SchemaName, len(p.Assets))
	encs := make([]schema.TransferEncodable, len(p.Assets))
	assets := make([]types.WyvernAsset, len(p.Assets))
	for i, asset := range p.Assets {
		names[i] = asset.SchemaName
		if names[i] == types.SchemaUnknown {
			names[i] = types.SchemaERC721
		}
		enc, err := schemaFor(names[i])
		if err != nil {
			return common.Hash{}, err
		}
		var quantity *big.Int
		if len(p.Quantities) > 0 {
			quantity = p.Quantities[i]
		}
		encs[i] = enc
		assets[i] = enc.AssetFromFields(asset, quantity)
	}

	encoded, err := schema.EncodeAtomicizedTransfer(encs, assets, p.FromAddress, p.ToAddress, c.contracts.Atomicizer)
	if err != nil {
		return common.Hash{}, asValidation(err)
	}

	found, err := c.GetProxy(ctx, p.FromAddress, 0)
	if err != nil {
		return common.Hash{}, err
	}
	proxy, ok := found.Get()
	if !ok {
		if proxy, err = c.InitializeProxy(ctx, p.FromAddress); err != nil {
			return common.Hash{}, err
		}
	}

	if err := c.approveAssets(ctx, names, assets, p.FromAddress, mo.Some(proxy)); err != nil {
		return common.Hash{}, err
	}
	c.bus.Dispatch(events.TransferAllEvent{AccountAddress: p.FromAddress, ToAddress: p.ToAddress, Assets: assets})

	data, err := schema.EncodeProxyCall(encoded.Target, types.HowToCallDelegateCall, encoded.Calldata, true)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "encode proxy call")
	}
	hash, err := c.sendTransaction(ctx, p.FromAddress, proxy, data, nil, 0)
	if err != nil {
		return common.Hash{}, err
	}

	description := fmt.Sprintf("Transferring %d asset", len(p.Assets))
	if len(p.Assets) != 1 {
		description += "s"
	}
	return hash, c.confirmTransaction(ctx, hash, events.TransferAll, description, nil)
}

// IsAssetTransferrable reports whether the asset's transfer would go
// through, judged by a gas estimate. Assets locked by their contract, in a
// game for example, fail the estimate.
func (c *Client) IsAssetTransferrable(ctx context.Context, p TransferCheckParams) (bool, error) {
	enc, err := schemaFor(p.Asset.SchemaName)
	if err != nil {
		return false, err
	}
	fn := enc.Transfer(enc.AssetFromFields(p.Asset, p.Quantity))

	from := p.FromAddress
	if p.UseProxy {
		proxy, err := c.GetProxy(ctx, p.FromAddress, 0)
		if err != nil {
			return false, err
		}
		addr, ok := proxy.Get()
		if !ok {
			c.log.WithField("owner", p.FromAddress.Hex()).Warn("asset owner does not have a proxy")
			return false, nil
		}
		from = addr
	}

	data, err := schema.EncodeTransferCall(fn, p.FromAddress, p.ToAddress)
	if err != nil {
		return false, asValidation(err)
	}
	target := fn.Target
	gas, err := c.estimateGas(ctx, ethereum.CallMsg{From: from, To: &target, Data: data}, 1)
	if err != nil {
		c.log.WithError(err).WithField("asset", p.Asset.String()).Debug("transfer estimate failed")
		return false, nil
	}
	return gas > 0, nil
}

// GetFungibleTokens returns the payment tokens matching filter: the
// network's WETH, when it matches, followed by those the API knows.
func (c *Client) GetFungibleTokens(ctx context.Context, filter FungibleTokenFilter) ([]types.PaymentToken, error) {
	known := []types.PaymentToken{{
		Name:     "Wrapped Ether",
		Symbol:   "WETH",
		Decimals: pricing.EtherDecimals,
		Address:  c.contracts.WETH,
	}}

	var out []types.PaymentToken
	for _, t := range known {
		if filter.Symbol != "" && !strings.EqualFold(t.Symbol, filter.Symbol) {
			continue
		}
		if addr, ok := filter.Address.Get(); ok && addr != t.Address {
			continue
		}
		if filter.Name != "" && t.Name != filter.Name {
			continue
		}
		out = append(out, t)
	}

	tokens, err := c.api.GetPaymentTokens(ctx, api.TokenQuery{
		Symbol:  filter.Symbol,
		Address: filter.Address.OrEmpty(),
		Name:    filter.Name,
	}, 0)
	if err != nil {
		return nil, err
	}
	return append(out, tokens...), nil
}
