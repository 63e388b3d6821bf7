package video

import (
	"context"
	"math"
	"time"
)

// RetryPolicy controls how many times a stream retries its initial connect
// while still Connecting. The zero value makes a single attempt. A stream
// that reached Playing is never reconnected; the caller requests again.
type RetryPolicy struct {
	Attempts     int           // total attempts, values below 1 mean 1
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap on the backoff delay, 0 means no cap
	Multiplier   float64       // backoff growth, values below 1 mean constant delay
}

// NoRetry makes exactly one connect attempt.
var NoRetry = RetryPolicy{Attempts: 1}

// Delay returns the wait before attempt n, counting the first retry as 1.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, the attempts run out, ctx is done or fn
// returns an error that retrying cannot fix. onRetry, if set, is told about
// each failed attempt that will be retried.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil || !retryable(ctx, err) || attempt == attempts {
			return err
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !IsInvalidRequest(err) && !IsResource(err)
}
