package reposource

import (
	"context"
	"math/rand"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/errors"
)

// Backoff retries transient failures with exponential delay and jitter.
// Permanent errors are returned immediately.
type Backoff struct {
	Base        time.Duration
	Factor      float64
	MaxAttempts int
	Jitter      float64 // fraction of the delay, e.g. 0.25 for ±25%
}

// DefaultBackoff matches the host retry policy: base 1s, factor 2,
// 5 attempts, ±25% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Factor:      2,
		MaxAttempts: 5,
		Jitter:      0.25,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The final retryable error is returned as-is so
// callers can still observe RateLimited.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	delay := b.Base
	var err error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Retryable(err) {
			return err
		}
		if attempt == b.MaxAttempts {
			break
		}
		select {
		case <-time.After(b.jittered(delay)):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.KindCancelled, "retry interrupted")
		}
		delay = time.Duration(float64(delay) * b.Factor)
	}
	return err
}

func (b Backoff) jittered(d time.Duration) time.Duration {
	if b.Jitter <= 0 {
		return d
	}
	// Uniform in [1-jitter, 1+jitter].
	scale := 1 + b.Jitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * scale)
}
