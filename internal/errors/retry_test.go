package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsOnFirstAttempt_NoDelay(t *testing.T) {
	// Given: a function that always succeeds
	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		return nil
	}

	// When: retrying
	err := Retry(context.Background(), DefaultRetryConfig(), fn)

	// Then: it runs exactly once
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	// Given: a function failing twice then succeeding
	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	// When: retrying
	err := Retry(context.Background(), cfg, fn)

	// Then: it eventually succeeds after 3 attempts
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsRetries_ReturnsLastError(t *testing.T) {
	// Given: a function that always fails
	wantErr := errors.New("permanent")
	fn := func(ctx context.Context) error { return wantErr }
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	// When: retrying
	err := Retry(context.Background(), cfg, fn)

	// Then: the last error is surfaced
	assert.Equal(t, wantErr, err)
}

func TestRetry_ContextCancelled_StopsRetrying(t *testing.T) {
	// Given: an already-cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fn := func(ctx context.Context) error { return errors.New("should not run") }

	// When: retrying
	err := Retry(ctx, DefaultRetryConfig(), fn)

	// Then: it fails fast with a Cancelled code
	require.Error(t, err)
	assert.Equal(t, CodeCancelled, GetCode(err))
}
