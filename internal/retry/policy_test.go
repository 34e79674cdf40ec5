package retry

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// recordingSleep captures requested delays without actually waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDelayGrowth(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	assert.Equal(t, 1*time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	// Capped at MaxDelay from here on.
	assert.Equal(t, 10*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(10))
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := DefaultPolicy().WithSleep(recordingSleep(&delays))

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "two 503s then success should take exactly 3 attempts")
	require.Len(t, delays, 2)
	// Jittered delays are within [base, base*1.3].
	assert.GreaterOrEqual(t, delays[0], 1*time.Second)
	assert.LessOrEqual(t, delays[0], 1300*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 2*time.Second)
	assert.LessOrEqual(t, delays[1], 2600*time.Millisecond)
	// Total slept time covers at least the sum of the first two base delays.
	assert.GreaterOrEqual(t, delays[0]+delays[1], 3*time.Second)
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := DefaultPolicy().WithSleep(recordingSleep(&delays))

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return &HTTPStatusError{StatusCode: http.StatusInternalServerError}
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts, "initial attempt plus three retries")
	assert.Len(t, delays, 3)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy().WithSleep(recordingSleep(&[]time.Duration{}))

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return &HTTPStatusError{StatusCode: http.StatusBadRequest}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy().WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	err := p.Do(ctx, func(context.Context) error {
		return &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}
	})

	require.Error(t, err)
	var enhanced *errors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, string(errors.CategoryCancellation), enhanced.GetCategory())
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 503", &HTTPStatusError{StatusCode: 503}, true},
		{"http 429", &HTTPStatusError{StatusCode: 429}, true},
		{"http 500", &HTTPStatusError{StatusCode: 500}, true},
		{"http 400", &HTTPStatusError{StatusCode: 400}, false},
		{"http 401", &HTTPStatusError{StatusCode: 401}, false},
		{"overloaded text", errors.NewStd("the model is overloaded, try later"), true},
		{"rate limit text", errors.NewStd("Rate limit exceeded"), true},
		{"temporarily unavailable", errors.NewStd("service temporarily unavailable"), true},
		{"connection refused", errors.NewStd("dial tcp: connection refused"), true},
		{"plain failure", errors.NewStd("invalid request payload"), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RetryableError(tt.err))
		})
	}
}
