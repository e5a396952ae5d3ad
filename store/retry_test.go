package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/rent-engine/rent"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, "insert", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	transient := errors.New("connection refused")
	err := Do(context.Background(), fastPolicy(3), nil, "insert", func() error {
		calls++
		return transient
	})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestDo_DomainErrorsArePermanent(t *testing.T) {
	for _, domainErr := range []error{rent.ErrDuplicatePeriod, rent.ErrAlreadyPaid, rent.ErrPaymentNotFound, rent.ErrStoreUnavailable} {
		calls := 0
		err := Do(context.Background(), fastPolicy(5), nil, "write", func() error {
			calls++
			return domainErr
		})

		assert.ErrorIs(t, err, domainErr)
		assert.Equal(t, 1, calls, domainErr.Error())
	}
}

func TestDo_NoRetry(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), NoRetry(), nil, "write", func() error {
		calls++
		return errors.New("timeout")
	})
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(10), nil, "write", func() error {
		calls++
		return errors.New("timeout")
	})
	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
