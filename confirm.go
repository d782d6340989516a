package wyvern

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kaifufi/wyvern-sdk-go/chain"
	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

// confirmationTracker runs one receipt poll per transaction hash and shares
// its result with every caller waiting on that hash.
type confirmationTracker struct {
	mu      sync.Mutex
	pending map[common.Hash]*confirmation
}

type confirmation struct {
	done    chan struct{}
	receipt *coretypes.Receipt
	err     error
}

func newConfirmationTracker() *confirmationTracker {
	return &confirmationTracker{pending: make(map[common.Hash]*confirmation)}
}

// wait blocks until the receipt of hash is known or ctx is done. The poll is
// started by the first waiter and outlives its context, bounded by timeout.
func (t *confirmationTracker) wait(ctx context.Context, p chain.Provider, hash common.Hash, interval, timeout time.Duration) (*coretypes.Receipt, error) {
	t.mu.Lock()
	c, ok := t.pending[hash]
	if !ok {
		c = &confirmation{done: make(chan struct{})}
		t.pending[hash] = c
		pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		go func() {
			defer cancel()
			c.receipt, c.err = chain.WaitForReceipt(pollCtx, p, hash, interval)
			t.mu.Lock()
			delete(t.pending, hash)
			t.mu.Unlock()
			close(c.done)
		}()
	}
	t.mu.Unlock()

	select {
	case <-c.done:
		return c.receipt, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// waiting returns the number of hashes being polled.
func (t *confirmationTracker) waiting() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// sendTransaction sends a transaction from account. A failure is reported as
// TransactionDenied.
func (c *Client) sendTransaction(ctx context.Context, from, to common.Address, data []byte, value *big.Int, gas uint64) (common.Hash, error) {
	hash, err := c.provider.SendTransaction(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Data:  data,
		Value: value,
		Gas:   gas,
	})
	if err != nil {
		c.bus.Dispatch(events.TransactionDeniedEvent{AccountAddress: from, Err: err})
		return common.Hash{}, transactionError(err)
	}
	return hash, nil
}

// transactionError tells a user refusing a transaction apart from any other
// send failure.
func transactionError(err error) error {
	if isUserRejection(err) {
		return &DeclinedError{Message: `Failed to authorize transaction: "user denied..."`, Err: err}
	}
	return &SettlementError{Message: fmt.Sprintf("Failed to authorize transaction: %q", truncate(err.Error())+"..."), Err: err}
}

// confirmTransaction waits for a sent transaction. Contract wallets may
// report the null hash; their transactions are confirmed by polling check,
// or by a fixed wait when there is nothing to check.
func (c *Client) confirmTransaction(ctx context.Context, hash common.Hash, action events.Type, description string, check func(context.Context) (bool, error)) error {
	log := c.log.WithFields(logrus.Fields{"action": action, "tx": hash.Hex()})
	log.Infof("Transaction started: %s", description)

	if hash == types.NullBlockHash {
		c.bus.Dispatch(events.TransactionCreatedEvent{Action: action})
		if check == nil {
			log.Infof("Unknown action, waiting %s: %s", c.cfg.UnknownActionWait, description)
			if err := sleep(ctx, c.cfg.UnknownActionWait); err != nil {
				return err
			}
			c.bus.Dispatch(events.TransactionConfirmedEvent{Action: action})
			return nil
		}
		if err := c.pollForConfirmation(ctx, check); err != nil {
			log.WithError(err).Errorf("Transaction failed: %s", description)
			c.bus.Dispatch(events.TransactionFailedEvent{Action: action, Err: err})
			return err
		}
		log.Infof("Transaction succeeded: %s", description)
		c.bus.Dispatch(events.TransactionConfirmedEvent{Action: action})
		return nil
	}

	c.bus.Dispatch(events.TransactionCreatedEvent{TransactionHash: hash, Action: action})
	timeout := time.Duration(c.cfg.ConfirmationAttempts) * c.cfg.ConfirmationInterval
	receipt, err := c.confirmations.wait(ctx, c.provider, hash, c.cfg.ReceiptPollInterval, timeout)
	if err == nil && receipt.Status != coretypes.ReceiptStatusSuccessful {
		err = errors.Errorf("transaction %s reverted", hash.Hex())
	}
	if err != nil {
		log.WithError(err).Errorf("Transaction failed: %s", description)
		c.bus.Dispatch(events.TransactionFailedEvent{TransactionHash: hash, Action: action, Err: err})
		return &SettlementError{Message: fmt.Sprintf("%s failed: %s", description, truncate(err.Error())), Err: err}
	}
	log.Infof("Transaction succeeded: %s", description)
	c.bus.Dispatch(events.TransactionConfirmedEvent{TransactionHash: hash, Action: action})
	return nil
}

func (c *Client) pollForConfirmation(ctx context.Context, check func(context.Context) (bool, error)) error {
	for attempt := 1; attempt <= c.cfg.ConfirmationAttempts; attempt++ {
		if err := sleep(ctx, c.cfg.ConfirmationInterval); err != nil {
			return err
		}
		ok, err := check(ctx)
		if err != nil {
			c.log.WithError(err).Debug("confirmation check failed")
		}
		if ok {
			return nil
		}
		if attempt%10 == 0 {
			c.log.Infof("Still waiting for confirmation, attempt %d of %d", attempt, c.cfg.ConfirmationAttempts)
		}
	}
	return &SettlementError{Message: fmt.Sprintf("Transaction not confirmed after %d attempts", c.cfg.ConfirmationAttempts)}
}
