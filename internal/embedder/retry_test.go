package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/pkg/types"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetryWithBackoff(t *testing.T) {
	retryable := types.NewEmbeddingProviderError(types.CodeProviderNetwork, "op", errors.New("flaky"), true)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		got, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, retryable
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			return 0, retryable
		})
		assert.ErrorIs(t, err, retryable)
		assert.Equal(t, 3, attempts)
	})

	t.Run("non-retryable stops immediately", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			return 0, errors.New("bad request")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			return 0, retryable
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
