package apierrors

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Observer is notified before each retry sleep with the classified error
// type and the upcoming attempt number (1-based).
type Observer func(errType ErrorType, attempt int)

// Do runs fn, retrying retryable classified errors per their retry config.
// Each error type owns its own budget: a rate-limit error mid-sequence does
// not inherit attempts already spent on transient errors. Non-retryable
// errors and retry exhaustion return the underlying classified error
// unchanged so callers can report the real kind.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return DoWithObserver(ctx, fn, nil)
}

// DoWithObserver is Do with a retry observer for metrics.
func DoWithObserver(ctx context.Context, fn func(ctx context.Context) error, observe Observer) error {
	attempts := make(map[ErrorType]int)

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !Retryable(err) {
			return err
		}

		errType := TypeOf(err)
		config := DefaultRetryConfigs[errType]
		attempts[errType]++
		if attempts[errType] > config.MaxRetries {
			return err
		}

		if observe != nil {
			observe(errType, attempts[errType])
		}

		delay := backoffDelay(config, attempts[errType])
		select {
		case <-ctx.Done():
			return NewErrorWithCause(ErrorTypeTransient, ctx.Err(), "retry abandoned")
		case <-time.After(delay):
		}
	}
}

// backoffDelay computes the delay before the given retry attempt (1-based).
func backoffDelay(config RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt-1)))

	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.Jitter {
		// +/- 10% to avoid thundering herd against a recovering upstream.
		jitter := time.Duration(rand.Int63n(int64(float64(delay)*0.2+1))) - time.Duration(float64(delay)*0.1)
		delay += jitter
		if delay < 0 {
			delay = config.InitialDelay
		}
	}

	return delay
}
