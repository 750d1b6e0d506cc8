package unifiedllm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds how often and how patiently a provider call is retried.
type RetryPolicy struct {
	MaxRetries        int     // retries after the first attempt
	BaseDelay         float64 // seconds before the first retry
	MaxDelay          float64 // cap on any single wait, in seconds
	BackoffMultiplier float64
	Jitter            bool // scale each wait by a random factor in [0.5, 1.5)

	// AttemptTimeout bounds each attempt separately. An attempt that runs
	// out of time fails with a RequestTimeoutError and may be retried.
	AttemptTimeout time.Duration

	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the policy used for provider calls: two
// retries, one second apart and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay returns the wait before retry n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := math.Min(p.BaseDelay*math.Pow(p.BackoffMultiplier, float64(attempt)), p.MaxDelay)
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return seconds(delay)
}

// backoff picks the wait after err. A rate limit's Retry-After wins over
// the computed delay; one longer than MaxDelay ends the retries.
func (p RetryPolicy) backoff(err error, attempt int) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter != nil {
		wait := seconds(*rl.RetryAfter)
		if wait > seconds(p.MaxDelay) {
			return 0, false
		}
		return wait, true
	}
	return p.Delay(attempt), true
}

// Retry runs fn until it succeeds, fails with an error that is not
// retryable, or the retries run out. Once ctx is done the failure is
// reported as an AbortError.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := runAttempt(ctx, policy, fn)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, aborted(ctx, err)
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay, ok := policy.backoff(err, attempt)
		if !ok {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, aborted(ctx, err)
		case <-timer.C:
		}
	}
}

// runAttempt runs fn once under the policy's AttemptTimeout.
func runAttempt[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()

	result, err := fn(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		var timeout *RequestTimeoutError
		if !errors.As(err, &timeout) {
			err = &RequestTimeoutError{SDKError: SDKError{
				Message: "provider call exceeded " + p.AttemptTimeout.String(),
				Cause:   err,
			}}
		}
	}
	return result, err
}

func aborted(ctx context.Context, last error) error {
	var abort *AbortError
	if errors.As(last, &abort) {
		return last
	}
	return &AbortError{SDKError: SDKError{Message: "provider call interrupted", Cause: errors.Join(ctx.Err(), last)}}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
