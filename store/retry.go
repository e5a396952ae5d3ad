// Package store holds what the SQL gateways share: write retries and the
// retry policy configuration.
package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/warp/rent-engine/metrics"
	"github.com/warp/rent-engine/rent"
)

// RetryPolicy bounds how often a failed write is attempted.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy tries a write three times over roughly half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// NoRetry attempts every write exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{Attempts: 1}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// policy is exhausted. Domain errors (rent.IsRetryable false) stop at once.
func Do(ctx context.Context, p RetryPolicy, logger *zap.Logger, name string, op func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !rent.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		metrics.IncStoreRetry(name)
		if logger != nil {
			logger.Warn("store write failed, retrying",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
	})
}
