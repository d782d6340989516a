package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("service unavailable")

func TestDoSucceedsAfterRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), FlatPolicy(2, time.Millisecond), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsBudget(t *testing.T) {
	var calls int
	err := Do(context.Background(), FlatPolicy(1, time.Millisecond), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}

func TestDoNoneRunsOnce(t *testing.T) {
	var calls int
	_ = Do(context.Background(), None, func(context.Context) error {
		calls++
		return errTransient
	})
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("not found")
	var calls int
	p := FlatPolicy(5, time.Millisecond).WithRetryable(func(err error) bool { return errors.Is(err, errTransient) })
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDoValue(t *testing.T) {
	var calls int
	v, err := DoValue(context.Background(), FlatPolicy(3, time.Millisecond), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, FlatPolicy(10, time.Hour), func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestExponentialDelay(t *testing.T) {
	p := Policy{Retries: 5, Delay: 100 * time.Millisecond, Backoff: Exponential, MaxDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, p.delay(0))
	assert.Equal(t, 200*time.Millisecond, p.delay(1))
	assert.Equal(t, 800*time.Millisecond, p.delay(3))
	assert.Equal(t, time.Second, p.delay(4))

	flat := FlatPolicy(3, 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, flat.delay(3))
}

func TestDelayForOverridesDelay(t *testing.T) {
	hinted := errors.New("slow down")
	p := FlatPolicy(1, time.Hour).WithDelayFor(func(err error) time.Duration {
		if errors.Is(err, hinted) {
			return time.Millisecond
		}
		return 0
	})
	assert.Equal(t, time.Millisecond, p.wait(0, hinted))
	assert.Equal(t, time.Hour, p.wait(0, errTransient))

	p.MaxDelay = time.Microsecond
	assert.Equal(t, time.Microsecond, p.wait(0, hinted))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var calls int
	err := Do(ctx, FlatPolicy(1, time.Hour).WithDelayFor(func(error) time.Duration { return time.Millisecond }), func(context.Context) error {
		calls++
		if calls == 1 {
			return hinted
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
