// Package retry implements bounded exponential backoff with jitter.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/okian/fixturecast/pkg/fault"
)

// Default policy values.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
	DefaultJitter     = 250 * time.Millisecond

	maxShift = 30
)

// Policy bounds a retry loop. MaxRetries counts attempts after the first.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     time.Duration

	// Retryable decides whether an error deserves another attempt.
	// Defaults to fault.IsRetryable.
	Retryable func(error) bool
	// OnRetry runs before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Rand returns a value in [0, n). Defaults to math/rand/v2.
	Rand func(n int64) int64
}

// DefaultPolicy returns the policy used by the upstream and model clients.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Jitter:     DefaultJitter,
	}
}

// Delay returns the wait before retry number attempt (1-based):
// base*2^(attempt-1) plus jitter, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxShift {
		shift = maxShift
	}
	d := p.BaseDelay << shift
	if d < 0 {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		rnd := p.Rand
		if rnd == nil {
			rnd = rand.Int64N
		}
		d += time.Duration(rnd(int64(p.Jitter)))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the retry
// budget is spent, or ctx is done. The last error from fn is returned as is;
// a cancelled wait returns ctx.Err().
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = fault.IsRetryable
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt > p.MaxRetries || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
