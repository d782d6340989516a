package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
)

// FallbackCaller routes reads to a primary caller and, once the primary has
// failed more than Threshold times in a row, retries failed reads on a
// secondary read-only caller. A successful primary read resets the count.
type FallbackCaller struct {
	Primary   Caller
	Secondary Caller
	Threshold int

	mu       sync.Mutex
	failures int
}

// NewFallbackCaller returns a caller that falls back to secondary. A nil
// secondary disables the fallback.
func NewFallbackCaller(primary, secondary Caller, threshold int) *FallbackCaller {
	return &FallbackCaller{Primary: primary, Secondary: secondary, Threshold: threshold}
}

func (f *FallbackCaller) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := f.Primary.CallContract(ctx, msg)
	if err == nil {
		f.mu.Lock()
		f.failures = 0
		f.mu.Unlock()
		return out, nil
	}
	if f.Secondary == nil {
		return nil, err
	}

	f.mu.Lock()
	f.failures++
	exceeded := f.failures > f.Threshold
	f.mu.Unlock()
	if !exceeded {
		return nil, err
	}
	return f.Secondary.CallContract(ctx, msg)
}

// Failures returns the current run of consecutive primary failures.
func (f *FallbackCaller) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}
