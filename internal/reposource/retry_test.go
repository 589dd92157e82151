package reposource

import (
	"context"
	"testing"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() Backoff {
	return Backoff{Base: time.Millisecond, Factor: 2, MaxAttempts: 5, Jitter: 0}
}

func TestBackoffRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastBackoff().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.KindRateLimited, "throttled")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := fastBackoff().Do(context.Background(), func() error {
		calls++
		return errors.New(errors.KindSourceUnavailable, "404")
	})
	assert.True(t, errors.IsKind(err, errors.KindSourceUnavailable))
	assert.Equal(t, 1, calls)
}

func TestBackoffExhaustsBudget(t *testing.T) {
	calls := 0
	err := fastBackoff().Do(context.Background(), func() error {
		calls++
		return errors.New(errors.KindRateLimited, "throttled")
	})
	// The last retryable error surfaces unchanged.
	assert.True(t, errors.IsKind(err, errors.KindRateLimited))
	assert.Equal(t, 5, calls)
}

func TestBackoffHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := Backoff{Base: time.Minute, Factor: 2, MaxAttempts: 3}

	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func() error {
			return errors.New(errors.KindRateLimited, "throttled")
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.IsKind(err, errors.KindCancelled))
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestJitterStaysInBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, MaxAttempts: 1, Jitter: 0.25}
	for i := 0; i < 100; i++ {
		d := b.jittered(time.Second)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}
