// Package retry runs an operation under a bounded retry budget.
package retry

import (
	"context"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// Flat waits Delay between every attempt.
	Flat Backoff = iota
	// Exponential doubles the delay after each retry, capped at MaxDelay.
	Exponential
)

// Policy bounds a retry loop. Retries is the number of attempts after the
// first; zero means the operation runs once.
type Policy struct {
	Retries  int
	Delay    time.Duration
	Backoff  Backoff
	MaxDelay time.Duration
	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
	// DelayFor lets the failed attempt's error name its own delay, such as a
	// server's Retry-After. A zero result keeps the policy delay.
	DelayFor func(error) time.Duration
}

// None runs once.
var None = Policy{}

// FlatPolicy retries up to retries times with a fixed delay.
func FlatPolicy(retries int, delay time.Duration) Policy {
	return Policy{Retries: retries, Delay: delay}
}

// WithRetryable returns p limited to errors accepted by fn.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// WithDelayFor returns p with fn consulted for the delay after each failure.
func (p Policy) WithDelayFor(fn func(error) time.Duration) Policy {
	p.DelayFor = fn
	return p
}

func (p Policy) wait(retry int, err error) time.Duration {
	if p.DelayFor != nil {
		if d := p.DelayFor(err); d > 0 {
			if p.MaxDelay > 0 && d > p.MaxDelay {
				return p.MaxDelay
			}
			return d
		}
	}
	return p.delay(retry)
}

func (p Policy) delay(retry int) time.Duration {
	if p.Backoff != Exponential {
		return p.Delay
	}
	d := p.Delay << retry
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		return p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, the budget is spent, the error is not
// retryable, or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
		if attempt >= p.Retries || (p.Retryable != nil && !p.Retryable(err)) {
			return out, err
		}

		timer := time.NewTimer(p.wait(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, err
		case <-timer.C:
		}
	}
}
