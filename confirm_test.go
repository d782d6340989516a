package wyvern

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/wyvern-sdk-go/events"
	"github.com/kaifufi/wyvern-sdk-go/types"
)

func TestConfirmTransactionSharesPoll(t *testing.T) {
	fc := newFakeChain()
	release := make(chan struct{})
	var lookups atomic.Int32
	fc.receipt = func(common.Hash) (*coretypes.Receipt, error) {
		lookups.Add(1)
		<-release
		return &coretypes.Receipt{Status: coretypes.ReceiptStatusSuccessful}, nil
	}
	cfg := testConfig()
	cfg.ConfirmationInterval = time.Second
	c, err := NewClient(cfg, fc, nil, &mockAPI{})
	require.NoError(t, err)
	created := recordEvents(c, events.TransactionCreated)

	const waiters = 3
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.confirmTransaction(context.Background(), txHash, events.WrapEth, "Wrapping ETH", nil)
		}()
	}

	require.Eventually(t, func() bool { return len(created()) == waiters && lookups.Load() == 1 }, time.Second, time.Millisecond)
	// Let the last waiter reach the tracker.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.confirmations.waiting())
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), lookups.Load())
	assert.Zero(t, c.confirmations.waiting())
}

func TestConfirmTransactionReverted(t *testing.T) {
	fc := newFakeChain()
	fc.receipt = func(common.Hash) (*coretypes.Receipt, error) {
		return &coretypes.Receipt{Status: coretypes.ReceiptStatusFailed}, nil
	}
	c := newTestClient(t, fc, &mockAPI{})
	got := recordEvents(c, events.TransactionCreated, events.TransactionFailed)

	err := c.confirmTransaction(context.Background(), txHash, events.CancelOrder, "Cancelling order", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettlement)
	assert.Contains(t, err.Error(), "Cancelling order failed")

	evs := got()
	require.Len(t, evs, 2)
	failed, ok := evs[1].(events.TransactionFailedEvent)
	require.True(t, ok)
	assert.Equal(t, txHash, failed.TransactionHash)
	assert.Equal(t, events.CancelOrder, failed.Action)
}

func TestConfirmTransactionTimesOut(t *testing.T) {
	fc := newFakeChain()
	fc.receipt = func(common.Hash) (*coretypes.Receipt, error) {
		return nil, ethereum.NotFound
	}
	c := newTestClient(t, fc, &mockAPI{})

	err := c.confirmTransaction(context.Background(), txHash, events.WrapEth, "Wrapping ETH", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettlement)
}

func TestConfirmNullHash(t *testing.T) {
	t.Run("polls the check", func(t *testing.T) {
		c := newTestClient(t, newFakeChain(), &mockAPI{})
		got := recordEvents(c, events.TransactionConfirmed)
		calls := 0
		check := func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		}

		require.NoError(t, c.confirmTransaction(context.Background(), types.NullBlockHash, events.ApproveOrder, "Approving order", check))
		assert.Equal(t, 3, calls)
		assert.Len(t, got(), 1)
	})

	t.Run("check never passes", func(t *testing.T) {
		c := newTestClient(t, newFakeChain(), &mockAPI{})
		got := recordEvents(c, events.TransactionFailed)
		calls := 0
		check := func(context.Context) (bool, error) {
			calls++
			return false, errReverted
		}

		err := c.confirmTransaction(context.Background(), types.NullBlockHash, events.ApproveOrder, "Approving order", check)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSettlement)
		assert.Equal(t, 5, calls)
		assert.Len(t, got(), 1)
	})

	t.Run("nothing to check", func(t *testing.T) {
		c := newTestClient(t, newFakeChain(), &mockAPI{})
		got := recordEvents(c, events.TransactionCreated, events.TransactionConfirmed)

		require.NoError(t, c.confirmTransaction(context.Background(), types.NullBlockHash, events.WrapEth, "Wrapping ETH", nil))
		assert.Len(t, got(), 2)
	})
}

func TestSendTransactionFailures(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
		target  error
	}{
		{name: "user rejects", sendErr: errors.New("MetaMask Tx Signature: User denied transaction signature."), target: ErrDeclined},
		{name: "node rejects", sendErr: errors.New("insufficient funds for gas * price + value"), target: ErrSettlement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeChain()
			fc.sendErr = tt.sendErr
			c := newTestClient(t, fc, &mockAPI{})
			got := recordEvents(c, events.TransactionDenied)

			_, err := c.sendTransaction(context.Background(), buyer, c.Contracts().WETH, nil, nil, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, tt.sendErr)

			evs := got()
			require.Len(t, evs, 1)
			assert.Equal(t, buyer, evs[0].(events.TransactionDeniedEvent).AccountAddress)
		})
	}
}
