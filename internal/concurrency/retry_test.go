package concurrency

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryValue_SucceedsAfterTransientFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	calls := 0
	var retried []int
	policy := RetryPolicy{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		OnRetry:     func(attempt int, _ error) { retried = append(retried, attempt) },
	}

	v, err := RetryValue(context.Background(), policy, logger, "search", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"attempt":1`)
	assert.Contains(t, lines[1], `"attempt":2`)
}

func TestRetryValue_SuccessOnFirstAttemptIsSingleCall(t *testing.T) {
	calls := 0
	_, err := RetryValue(context.Background(), RetryPolicy{MaxAttempts: 3}, zerolog.Nop(), "op", func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustedPropagatesLastError(t *testing.T) {
	sentinel := errors.New("upstream 503")
	calls := 0

	_, err := RetryValue(context.Background(), RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, zerolog.Nop(), "grobid", func(context.Context) (int, error) {
		calls++
		return 0, sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "grobid failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0

	_, err := RetryValue(context.Background(), RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}, zerolog.Nop(), "op", func(context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestRetry_ZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	_, err := RetryValue(context.Background(), RetryPolicy{}, zerolog.Nop(), "op", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sentinel := errors.New("timeout")
	calls := 0

	_, err := RetryValue(ctx, RetryPolicy{MaxAttempts: 3, Delay: time.Hour}, zerolog.Nop(), "op", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("x")))
}
