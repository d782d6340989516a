package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// ErrUnknownAccount is returned when a provider is asked to sign for an
// account it holds no key for.
var ErrUnknownAccount = errors.New("unknown account")

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// Provider is the chain access the client needs: reads, gas estimation,
// signed transaction submission, code checks, receipts and message signing.
type Provider interface {
	Caller
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// SendTransaction signs msg as msg.From and submits it.
	SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error)
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	// TransactionReceipt returns ethereum.NotFound while the transaction is pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// SignMessage personal-signs message as account and returns r‖s‖v.
	SignMessage(ctx context.Context, account common.Address, message []byte) ([]byte, error)
}

// Signer holds the key of one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	// SignText personal-signs message and returns r‖s‖v with v in {27, 28}.
	SignText(message []byte) ([]byte, error)
}

// EthProvider implements Provider over a JSON-RPC endpoint with local keys.
type EthProvider struct {
	client  *ethclient.Client
	chainID *big.Int

	mu      sync.RWMutex
	signers map[common.Address]Signer
}

// Dial connects to rpcURL. Signers may be added at construction or later
// with AddSigner; a provider without signers is read-only.
func Dial(ctx context.Context, rpcURL string, signers ...Signer) (*EthProvider, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RPC")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to get chain ID")
	}

	p := &EthProvider{
		client:  client,
		chainID: chainID,
		signers: make(map[common.Address]Signer),
	}
	for _, s := range signers {
		p.AddSigner(s)
	}
	return p, nil
}

// AddSigner registers the key of an account.
func (p *EthProvider) AddSigner(s Signer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signers[s.Address()] = s
}

// Accounts lists the accounts this provider can sign for.
func (p *EthProvider) Accounts() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]common.Address, 0, len(p.signers))
	for addr := range p.signers {
		out = append(out, addr)
	}
	return out
}

// ChainID returns the chain id reported by the endpoint at dial time.
func (p *EthProvider) ChainID() *big.Int {
	return new(big.Int).Set(p.chainID)
}

func (p *EthProvider) signer(account common.Address) (Signer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.signers[account]
	if !ok {
		return nil, errors.Wrap(ErrUnknownAccount, account.Hex())
	}
	return s, nil
}

func (p *EthProvider) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return p.client.CallContract(ctx, msg, nil)
}

func (p *EthProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return p.client.EstimateGas(ctx, msg)
}

func (p *EthProvider) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return p.client.CodeAt(ctx, account, nil)
}

func (p *EthProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.client.BalanceAt(ctx, account, nil)
}

func (p *EthProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.client.TransactionReceipt(ctx, hash)
}

// SendTransaction fills in nonce, gas price and, when msg.Gas is zero, a gas
// estimate, then signs with the key of msg.From.
func (p *EthProvider) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	s, err := p.signer(msg.From)
	if err != nil {
		return common.Hash{}, err
	}
	if msg.To == nil {
		return common.Hash{}, errors.New("contract creation is not supported")
	}

	nonce, err := p.client.PendingNonceAt(ctx, msg.From)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get nonce")
	}
	gasPrice := msg.GasPrice
	if gasPrice == nil {
		if gasPrice, err = p.client.SuggestGasPrice(ctx); err != nil {
			return common.Hash{}, errors.Wrap(err, "failed to get gas price")
		}
	}
	gas := msg.Gas
	if gas == 0 {
		if gas, err = p.client.EstimateGas(ctx, msg); err != nil {
			return common.Hash{}, errors.Wrap(err, "failed to estimate gas")
		}
	}
	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTransaction(nonce, *msg.To, value, gas, gasPrice, msg.Data)
	signedTx, err := s.SignTx(tx, p.chainID)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}
	if err := p.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to send transaction")
	}
	return signedTx.Hash(), nil
}

func (p *EthProvider) SignMessage(_ context.Context, account common.Address, message []byte) ([]byte, error) {
	s, err := p.signer(account)
	if err != nil {
		return nil, err
	}
	return s.SignText(message)
}

// WaitForReceipt polls for the receipt of hash every interval until it is
// mined or ctx is done.
func WaitForReceipt(ctx context.Context, p Provider, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := p.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(err, "receipt for %s", hash.Hex())
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "timeout waiting for transaction receipt: %s", hash.Hex())
		case <-ticker.C:
		}
	}
}

// Close closes the Ethereum client connection
func (p *EthProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
