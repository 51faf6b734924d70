package provider

import (
	"context"
	"time"
)

// RetryingProvider decorates a PaymentProvider with bounded retries.
// Waits between attempt n and n+1 are baseDelay * 2^(n-1) and are
// cancellable; an aborted wait surfaces as a non-retryable provider error.
type RetryingProvider struct {
	inner       PaymentProvider
	baseDelay   time.Duration
	maxAttempts int
}

func NewRetryingProvider(inner PaymentProvider, baseDelay time.Duration, maxAttempts int) *RetryingProvider {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingProvider{
		inner:       inner,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
	}
}

func (r *RetryingProvider) Name() string {
	return r.inner.Name()
}

func (r *RetryingProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeOutcome, error) {
	return r.retry(ctx, func(ctx context.Context) (*ChargeOutcome, error) {
		return r.inner.Charge(ctx, req)
	})
}

func (r *RetryingProvider) GetTransactionStatus(ctx context.Context, providerTxID string) (*ChargeOutcome, error) {
	return r.retry(ctx, func(ctx context.Context) (*ChargeOutcome, error) {
		return r.inner.GetTransactionStatus(ctx, providerTxID)
	})
}

func (r *RetryingProvider) retry(ctx context.Context, operation func(ctx context.Context) (*ChargeOutcome, error)) (*ChargeOutcome, error) {
	var lastOutcome *ChargeOutcome
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		outcome, err := operation(ctx)

		if err == nil {
			if outcome.Status != ChargeFailed || !outcome.Retryable {
				return outcome, nil
			}
			lastOutcome = outcome
			lastErr = nil
		} else {
			if provErr, ok := AsProviderError(err); ok && !provErr.IsRetryable() {
				return nil, err
			}
			// Unexpected faults are treated as transient for the
			// remaining attempts.
			lastErr = err
			lastOutcome = nil
		}

		if attempt < r.maxAttempts {
			if err := r.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	if lastOutcome != nil {
		return lastOutcome, nil
	}
	if provErr, ok := AsProviderError(lastErr); ok {
		return nil, provErr
	}
	return nil, NewProviderError(CodeProviderUnavailable, lastErr.Error(), r.inner.Name())
}

func (r *RetryingProvider) wait(ctx context.Context, attempt int) error {
	delay := r.baseDelay * time.Duration(1<<(attempt-1))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return NewProviderError(CodeProviderUnavailable, "charge aborted while waiting to retry: "+ctx.Err().Error(), r.inner.Name())
	case <-timer.C:
		return nil
	}
}
