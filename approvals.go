package wyvern

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/internal/retry"
	"github.com/kaifufi/wyvern-sdk-go/schema"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

var errNoProxy = errors.New("no proxy registered")

// GetProxy returns the proxy the registry holds for account, retrying up to
// retries times while none is registered.
func (c *Client) GetProxy(ctx context.Context, account common.Address, retries int) (mo.Option[common.Address], error) {
	policy := retry.FlatPolicy(retries, c.cfg.ProxyRetryDelay).WithRetryable(func(err error) bool {
		return errors.Is(err, errNoProxy)
	})
	proxy, err := retry.DoValue(ctx, policy, func(ctx context.Context) (common.Address, error) {
		p, err := c.registry.Proxy(ctx, account)
		if err != nil {
			return types.NullAddress, errors.Wrap(err, "Couldn't retrieve your account from the blockchain - make sure you're on the correct Ethereum network!")
		}
		if types.IsNull(p) {
			return p, errNoProxy
		}
		return p, nil
	})
	if errors.Is(err, errNoProxy) {
		return mo.None[common.Address](), nil
	}
	if err != nil {
		return mo.None[common.Address](), err
	}
	return mo.Some(proxy), nil
}

// InitializeProxy registers a proxy for account and returns its address.
func (c *Client) InitializeProxy(ctx context.Context, account common.Address) (common.Address, error) {
	c.log.WithField("account", account.Hex()).Info("Initializing proxy for account")
	c.bus.Dispatch(events.InitializeAccountEvent{AccountAddress: account})

	data, err := c.registry.PackRegisterProxy()
	if err != nil {
		return types.NullAddress, errors.Wrap(err, "encode registerProxy")
	}
	to := c.registry.Address()
	estimate, err := c.estimateGas(ctx, ethereum.CallMsg{From: account, To: &to, Data: data}, 0)
	if err != nil {
		return types.NullAddress, &SettlementError{Message: fmt.Sprintf("Failed to estimate gas for registering your account: %s", truncate(err.Error())), Err: err}
	}
	hash, err := c.sendTransaction(ctx, account, to, data, nil, correctGas(estimate, c.cfg.GasIncreaseFactor))
	if err != nil {
		return types.NullAddress, err
	}

	err = c.confirmTransaction(ctx, hash, events.InitializeAccount, "Initializing proxy for account", func(ctx context.Context) (bool, error) {
		proxy, err := c.GetProxy(ctx, account, 0)
		return proxy.IsPresent(), err
	})
	if err != nil {
		return types.NullAddress, err
	}

	proxy, err := c.GetProxy(ctx, account, c.cfg.ProxyRetries)
	if err != nil {
		return types.NullAddress, err
	}
	addr, ok := proxy.Get()
	if !ok {
		return types.NullAddress, &SettlementError{Message: "Failed to initialize your account :( Please restart your wallet/browser and try again!"}
	}
	return addr, nil
}

func (c *Client) proxyOrDefault(ctx context.Context, account common.Address, proxy mo.Option[common.Address]) (common.Address, error) {
	if addr, ok := proxy.Get(); ok {
		return addr, nil
	}
	found, err := c.GetProxy(ctx, account, 0)
	if err != nil {
		return types.NullAddress, err
	}
	addr, ok := found.Get()
	if !ok {
		return types.NullAddress, &ValidationError{Message: "Uninitialized account"}
	}
	return addr, nil
}

// ApproveSemiOrNonFungibleToken lets the account's proxy move a non-fungible
// or semi-fungible token. Contracts supporting setApprovalForAll are
// approved as a whole; others get a single-token approval. It returns the
// hash of the approval transaction, or nil when none was needed.
func (c *Client) ApproveSemiOrNonFungibleToken(ctx context.Context, p ApproveNFTParams) (*common.Hash, error) {
	proxy, err := c.proxyOrDefault(ctx, p.AccountAddress, p.ProxyAddress)
	if err != nil {
		return nil, err
	}
	inFlight := p.SkipApproveAllIfTokenAddressIn
	if inFlight == nil {
		inFlight = c.approvingAll
	}
	log := c.log.WithFields(logrus.Fields{"token": p.TokenAddress.Hex(), "proxy": proxy.Hex()})

	approvedForAll := func(ctx context.Context) mo.Option[bool] {
		return chain.IsApprovedForAll(ctx, c.reads, p.TokenAddress, p.AccountAddress, proxy)
	}

	if approved, supported := approvedForAll(ctx).Get(); supported {
		if approved {
			log.Info("Already approved proxy for all tokens")
			return nil, nil
		}
		if !inFlight.Add(p.TokenAddress) {
			log.Info("Already approving proxy for all tokens in another transaction")
			return nil, nil
		}
		if p.SkipApproveAllIfTokenAddressIn == nil {
			defer inFlight.Remove(p.TokenAddress)
		}

		hash, err := c.approveAll(ctx, p, proxy, approvedForAll)
		if err != nil {
			log.WithError(err).Error("approve all failed")
			return nil, &SettlementError{
				Message: "Couldn't get permission to approve these tokens for trading. Their contract might not be implemented correctly. Please contact the developer!",
				Err:     err,
			}
		}
		return &hash, nil
	}

	log.Info("Contract does not support Approve All")
	approvedOne := func(ctx context.Context) (bool, error) {
		return c.isApprovedForOne(ctx, p.TokenAddress, p.TokenID, proxy, log), nil
	}
	if ok, _ := approvedOne(ctx); ok {
		return nil, nil
	}

	c.bus.Dispatch(events.ApproveAssetEvent{
		AccountAddress:  p.AccountAddress,
		ProxyAddress:    proxy,
		ContractAddress: p.TokenAddress,
		TokenID:         p.TokenID,
	})
	hash, err := c.approveOne(ctx, p, proxy, approvedOne)
	if err != nil {
		log.WithError(err).Error("single token approval failed")
		return nil, &SettlementError{
			Message: "Couldn't get permission to approve this token for trading. Its contract might not be implemented correctly. Please contact the developer!",
			Err:     err,
		}
	}
	return &hash, nil
}

func (c *Client) approveAll(ctx context.Context, p ApproveNFTParams, proxy common.Address, check func(context.Context) mo.Option[bool]) (common.Hash, error) {
	c.bus.Dispatch(events.ApproveAllAssetsEvent{
		AccountAddress:  p.AccountAddress,
		ProxyAddress:    proxy,
		ContractAddress: p.TokenAddress,
	})
	data, err := chain.PackSetApprovalForAll(proxy, true)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := c.sendTransaction(ctx, p.AccountAddress, p.TokenAddress, data, nil, 0)
	if err != nil {
		return common.Hash{}, err
	}
	err = c.confirmTransaction(ctx, hash, events.ApproveAllAssets, "Approving all tokens of this type for trading", func(ctx context.Context) (bool, error) {
		return check(ctx).OrElse(false), nil
	})
	return hash, err
}

func (c *Client) approveOne(ctx context.Context, p ApproveNFTParams, proxy common.Address, check func(context.Context) (bool, error)) (common.Hash, error) {
	data, err := chain.PackERC721Approve(proxy, p.TokenID)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := c.sendTransaction(ctx, p.AccountAddress, p.TokenAddress, data, nil, 0)
	if err != nil {
		return common.Hash{}, err
	}
	err = c.confirmTransaction(ctx, hash, events.ApproveAsset, "Approving single token for trading", check)
	return hash, err
}

// nonCompliantApprovalAccessors are read when getApproved is missing.
var nonCompliantApprovalAccessors = []string{"kittyIndexToApproved", "partIndexToApproved"}

func (c *Client) isApprovedForOne(ctx context.Context, token common.Address, tokenID *big.Int, proxy common.Address, log logrus.FieldLogger) bool {
	approved, err := chain.ApprovedAddress(ctx, c.reads, token, "getApproved", tokenID)
	if err == nil && approved == proxy {
		log.Info("Already approved proxy for this token")
		return true
	}
	if err == nil && !types.IsNull(approved) {
		log.Infof("Approve response: %s", approved.Hex())
		return false
	}
	for _, accessor := range nonCompliantApprovalAccessors {
		approved, err := chain.ApprovedAddress(ctx, c.reads, token, accessor, tokenID)
		if err != nil {
			continue
		}
		if approved == proxy {
			log.Info("Already approved proxy for this item")
			return true
		}
		if !types.IsNull(approved) {
			log.Infof("Special-case approve response: %s", approved.Hex())
			return false
		}
	}
	return false
}

func (c *Client) fungibleApprovalDefaults(p FungibleApprovalParams) (common.Address, *big.Int) {
	proxy := p.ProxyAddress.OrElse(c.contracts.TokenTransferProxy)
	minimum := p.MinimumAmount
	if minimum == nil {
		minimum = types.MaxUint256
	}
	return proxy, minimum
}

// approvedTokenCount reads an allowance, treating a failed read as zero.
func (c *Client) approvedTokenCount(ctx context.Context, account, token, proxy common.Address) *big.Int {
	allowance, err := chain.ERC20Allowance(ctx, c.reads, token, account, proxy)
	if err != nil {
		c.log.WithError(err).WithField("token", token.Hex()).Warn("allowance lookup failed")
		return new(big.Int)
	}
	return allowance
}

// CheckFungibleTokenApproval reports whether the proxy may already move at
// least the minimum amount of the token.
func (c *Client) CheckFungibleTokenApproval(ctx context.Context, p FungibleApprovalParams) (bool, error) {
	proxy, minimum := c.fungibleApprovalDefaults(p)
	approved := c.approvedTokenCount(ctx, p.AccountAddress, p.TokenAddress, proxy)
	if approved.Cmp(minimum) >= 0 {
		c.log.Info("Already approved enough currency for trading")
		return true, nil
	}
	c.log.Infof("Not enough token approved for trade: %s approved to transfer %s", approved, p.TokenAddress.Hex())
	return false, nil
}

// ApproveFungibleToken approves the maximum allowance for the proxy unless
// the minimum amount is already approved. It returns the transaction hash,
// or nil when no transaction was needed.
func (c *Client) ApproveFungibleToken(ctx context.Context, p FungibleApprovalParams) (*common.Hash, error) {
	proxy, minimum := c.fungibleApprovalDefaults(p)
	approved := c.approvedTokenCount(ctx, p.AccountAddress, p.TokenAddress, proxy)
	if approved.Cmp(minimum) >= 0 {
		c.log.Info("Already approved enough currency for trading")
		return nil, nil
	}
	c.log.Infof("Not enough token approved for trade: %s approved to transfer %s", approved, p.TokenAddress.Hex())

	c.bus.Dispatch(events.ApproveCurrencyEvent{
		AccountAddress:  p.AccountAddress,
		ContractAddress: p.TokenAddress,
		ProxyAddress:    proxy,
	})

	// ENJ and MANA refuse to change a non-zero allowance.
	if minimum.Sign() > 0 && (p.TokenAddress == types.EnjinCoinAddress || p.TokenAddress == types.ManaAddress) {
		if _, err := c.UnapproveFungibleToken(ctx, p.AccountAddress, p.TokenAddress, mo.Some(proxy)); err != nil {
			return nil, err
		}
	}

	data, err := chain.PackERC20Approve(proxy, types.MaxUint256)
	if err != nil {
		return nil, err
	}
	hash, err := c.sendTransaction(ctx, p.AccountAddress, p.TokenAddress, data, nil, 0)
	if err != nil {
		return nil, err
	}
	err = c.confirmTransaction(ctx, hash, events.ApproveCurrency, "Approving currency for trading", func(ctx context.Context) (bool, error) {
		return c.approvedTokenCount(ctx, p.AccountAddress, p.TokenAddress, proxy).Cmp(minimum) >= 0, nil
	})
	if err != nil {
		return nil, err
	}
	return &hash, nil
}

// UnapproveFungibleToken sets the proxy's allowance to zero.
func (c *Client) UnapproveFungibleToken(ctx context.Context, account, token common.Address, proxy mo.Option[common.Address]) (common.Hash, error) {
	spender := proxy.OrElse(c.contracts.TokenTransferProxy)
	c.bus.Dispatch(events.UnapproveCurrencyEvent{
		AccountAddress:  account,
		ContractAddress: token,
		ProxyAddress:    spender,
	})

	data, err := chain.PackERC20Approve(spender, new(big.Int))
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := c.sendTransaction(ctx, account, token, data, nil, 0)
	if err != nil {
		return common.Hash{}, err
	}
	err = c.confirmTransaction(ctx, hash, events.UnapproveCurrency, "Resetting Currency Approval", func(ctx context.Context) (bool, error) {
		return c.approvedTokenCount(ctx, account, token, spender).Sign() == 0, nil
	})
	return hash, err
}

// approveAssets checks the account owns every asset, then approves each for
// trading through the account's proxy, registering the proxy first when the
// account has none. ERC20 contracts are approved once per call.
func (c *Client) approveAssets(ctx context.Context, schemaNames []types.SchemaName, assets []types.WyvernAsset, account common.Address, proxy mo.Option[common.Address]) error {
	proxyAddr, ok := proxy.Get()
	if !ok {
		found, err := c.GetProxy(ctx, account, 0)
		if err != nil {
			return err
		}
		if proxyAddr, ok = found.Get(); !ok {
			if proxyAddr, err = c.InitializeProxy(ctx, account); err != nil {
				return err
			}
		}
	}

	fungibles := NewAddressSet()
	g, gctx := errgroup.WithContext(ctx)
	for i := range assets {
		asset, name := assets[i], schemaNames[i]
		g.Go(func() error {
			owns, err := c.ownsAssetOnChain(gctx, account, mo.Some(proxyAddr), asset, name)
			if err != nil {
				if c.cfg.StrictOwnershipCheck {
					return err
				}
				c.log.WithError(err).WithField("asset", asset.Address.Hex()).Warn("ownership check failed, assuming ownership")
				owns = true
			}
			if !owns {
				msg := fmt.Sprintf("You don't own enough to do that (%s base units of %s", quantityOrOne(asset), types.LowerHex(asset.Address))
				if asset.ID != nil {
					msg += " token " + asset.ID.String()
				}
				return &ValidationError{Message: msg + ")"}
			}

			switch name {
			case types.SchemaERC20:
				if !fungibles.Add(asset.Address) {
					return nil
				}
				_, err := c.ApproveFungibleToken(gctx, FungibleApprovalParams{
					AccountAddress: account,
					TokenAddress:   asset.Address,
					ProxyAddress:   mo.Some(proxyAddr),
				})
				return err
			default:
				_, err := c.ApproveSemiOrNonFungibleToken(gctx, ApproveNFTParams{
					TokenID:        asset.IDOrZero(),
					TokenAddress:   asset.Address,
					AccountAddress: account,
					ProxyAddress:   mo.Some(proxyAddr),
					SchemaName:     name,
				})
				return err
			}
		})
	}
	return g.Wait()
}

func quantityOrOne(asset types.WyvernAsset) *big.Int {
	if asset.Quantity == nil {
		return big.NewInt(1)
	}
	return asset.Quantity
}

// ownsAssetOnChain reports whether the account, or else its proxy, holds at
// least the asset's quantity.
func (c *Client) ownsAssetOnChain(ctx context.Context, account common.Address, proxy mo.Option[common.Address], wy types.WyvernAsset, name types.SchemaName) (bool, error) {
	asset := types.Asset{TokenAddress: wy.Address, TokenID: wy.ID, SchemaName: name, Name: wy.Name}
	minimum := quantityOrOne(wy)

	balance, err := c.GetAssetBalance(ctx, account, asset)
	if err != nil {
		return false, err
	}
	if balance.Cmp(minimum) >= 0 {
		return true, nil
	}

	proxyAddr, ok := proxy.Get()
	if !ok {
		found, err := c.GetProxy(ctx, account, 0)
		if err != nil {
			return false, err
		}
		if proxyAddr, ok = found.Get(); !ok {
			return false, nil
		}
	}
	balance, err = c.GetAssetBalance(ctx, proxyAddr, asset)
	if err != nil {
		return false, err
	}
	return balance.Cmp(minimum) >= 0, nil
}

// GetAssetBalance returns how much of asset account holds, in base units.
// Non-fungible assets have a balance of 0 or 1.
func (c *Client) GetAssetBalance(ctx context.Context, account common.Address, asset types.Asset) (*big.Int, error) {
	enc, err := schemaFor(asset.SchemaName)
	if err != nil {
		return nil, err
	}
	wy := enc.AssetFromFields(asset, nil)

	policy := retry.FlatPolicy(1, c.cfg.RetryDelay).WithRetryable(func(err error) bool {
		return !errors.Is(err, ErrValidation)
	})
	balance, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*big.Int, error) {
		return c.assetBalance(ctx, enc, wy, account)
	})
	if errors.Is(err, ErrValidation) {
		return nil, err
	}
	if err != nil {
		c.log.WithError(err).WithField("asset", asset.String()).Error("balance lookup failed")
		return nil, &SettlementError{Message: "Unable to get current owner from smart contract", Err: err}
	}
	return balance, nil
}

func (c *Client) assetBalance(ctx context.Context, enc schema.TransferEncodable, wy types.WyvernAsset, account common.Address) (*big.Int, error) {
	if fn, ok := enc.CountOf(wy); ok {
		out, err := c.callFunction(ctx, fn, account)
		if err != nil {
			return nil, err
		}
		count, ok := out[0].(*big.Int)
		if !ok {
			return nil, errors.Errorf("%s returned %T", fn.Name, out[0])
		}
		return count, nil
	}
	if fn, ok := enc.OwnerOf(wy); ok {
		out, err := c.callFunction(ctx, fn, account)
		if errors.Is(err, schema.ErrMissingValue) {
			return nil, &ValidationError{Message: "Missing an argument for finding the owner of this asset"}
		}
		if err != nil {
			return nil, err
		}
		owner, ok := out[0].(common.Address)
		if !ok {
			return nil, errors.Errorf("%s returned %T", fn.Name, out[0])
		}
		if owner == account {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	}
	return nil, &ValidationError{Message: "Missing ownership schema for this asset type"}
}

// callFunction calls a constant schema function on behalf of owner.
func (c *Client) callFunction(ctx context.Context, fn schema.Function, owner common.Address) ([]any, error) {
	data, err := schema.EncodeDefaultCall(fn, owner)
	if err != nil {
		return nil, err
	}
	target := fn.Target
	raw, err := c.reads.CallContract(ctx, ethereum.CallMsg{From: owner, To: &target, Data: data})
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", fn.Name)
	}
	out, err := fn.DecodeOutput(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", fn.Name)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%s returned nothing", fn.Name)
	}
	return out, nil
}

// GetTokenBalance returns the ERC20 balance of account in base units.
func (c *Client) GetTokenBalance(ctx context.Context, account, token common.Address) (*big.Int, error) {
	return c.GetAssetBalance(ctx, account, types.Asset{TokenAddress: token, SchemaName: types.SchemaERC20})
}

// estimateGas estimates msg, retrying up to retries times. Retries go to the
// read-only provider when there is one.
func (c *Client) estimateGas(ctx context.Context, msg ethereum.CallMsg, retries int) (uint64, error) {
	attempt := 0
	return retry.DoValue(ctx, retry.FlatPolicy(retries, c.cfg.RetryDelay), func(ctx context.Context) (uint64, error) {
		var p chain.Provider = c.provider
		if attempt > 0 && c.readOnly != nil {
			p = c.readOnly
		}
		attempt++
		return p.EstimateGas(ctx, msg)
	})
}
