package llm

import (
	"context"
	"errors"
	"time"

	"github.com/googleapis/gax-go/v2"
)

// RetryPolicy bounds a retry loop: a fixed attempt count with
// exponential backoff between attempts.
type RetryPolicy struct {
	// Attempts is the total number of tries (first call included).
	Attempts int

	// Initial is the first backoff delay.
	Initial time.Duration

	// Max caps the backoff delay.
	Max time.Duration

	// Multiplier scales the delay each retry. Default 2.
	Multiplier float64
}

// DefaultRetry is the general-purpose policy for extraction calls.
var DefaultRetry = RetryPolicy{Attempts: 3, Initial: 1 * time.Second, Max: 10 * time.Second}

// RecallRetry is the recall-synthesis policy: 3 attempts at 5s/15s/45s.
var RecallRetry = RetryPolicy{Attempts: 3, Initial: 5 * time.Second, Max: 120 * time.Second, Multiplier: 3}

// Retry invokes fn up to p.Attempts times, backing off between tries.
//
// ErrBadRequest aborts immediately — a malformed request never heals.
// Context cancellation aborts the wait. All other errors (including
// ErrRateLimited) consume an attempt.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	bo := gax.Backoff{
		Initial:    p.Initial,
		Max:        p.Max,
		Multiplier: mult,
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if serr := gax.Sleep(ctx, bo.Pause()); serr != nil {
				return serr
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrBadRequest) || errors.Is(err, context.Canceled) {
			return err
		}
	}
	return err
}

// CompleteWithRetry is Complete wrapped in a retry policy.
func CompleteWithRetry(ctx context.Context, c Client, p RetryPolicy, prompt string, opts Options) (string, error) {
	var out string
	err := Retry(ctx, p, func(ctx context.Context) error {
		var cerr error
		out, cerr = c.Complete(ctx, prompt, opts)
		return cerr
	})
	return out, err
}
