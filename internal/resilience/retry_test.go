package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetryConfig(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("boom"), 503)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetryConfig(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewRateLimitError(errors.New("rate limited"), 0)
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls, "must not retry beyond the fixed budget")
}

func TestDoVal_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetryConfig(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid request")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastRetryConfig(5), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("boom"), 503)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("bad request")))
	assert.True(t, IsRetryable(NewTransientError(errors.New("x"), 500)))
	assert.True(t, IsRetryable(NewRateLimitError(errors.New("x"), time.Second)))
	assert.True(t, IsRetryable(errors.New("api error: rate limit exceeded")))
	assert.True(t, IsRetryable(errors.New("read tcp: i/o timeout")))
}

func TestRetryAfterHint(t *testing.T) {
	assert.Equal(t, time.Duration(0), RetryAfterHint(errors.New("x")))
	assert.Equal(t, 2*time.Second, RetryAfterHint(NewRateLimitError(errors.New("x"), 2*time.Second)))
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	assert.True(t, IsRetryableHTTPStatus(429))
	assert.True(t, IsRetryableHTTPStatus(529))
	assert.False(t, IsRetryableHTTPStatus(400))
	assert.False(t, IsRetryableHTTPStatus(200))
}
