package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errNotAccepted = errors.New("result not accepted")

// Poller calls an operation up to MaxAttempts times until Accept approves a
// result. Each attempt runs under its own PerAttemptTimeout.
type Poller[T any] struct {
	MaxAttempts       int
	PerAttemptTimeout time.Duration
	// Interval is the initial wait between attempts.
	Interval time.Duration
	// Accept reports whether a result ends polling. Nil accepts any result.
	Accept func(T) bool
	// Prefer reports whether candidate should replace the current best
	// unaccepted result. Nil keeps the most recent one.
	Prefer func(candidate, best T) bool
}

// PollResult is the outcome of a Poller run.
type PollResult[T any] struct {
	// Value is the accepted result or, failing that, the best one seen.
	Value T
	// Found is true when at least one attempt returned without error.
	Found bool
	// Accepted is true when Value passed Accept.
	Accepted bool
	Attempts int
	// LastErr is the error of the most recent failed attempt.
	LastErr error
}

// Run polls fn. It never returns an error; inspect Found and Accepted.
func (p Poller[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) PollResult[T] {
	var res PollResult[T]

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	op := func() error {
		res.Attempts++

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttemptTimeout)
		}
		v, err := fn(attemptCtx)
		cancel()

		if err != nil {
			res.LastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		if p.Accept == nil || p.Accept(v) {
			res.Value, res.Found, res.Accepted = v, true, true
			return nil
		}
		if !res.Found || p.Prefer == nil || p.Prefer(v, res.Value) {
			res.Value, res.Found = v, true
		}
		return errNotAccepted
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 20 * interval
	b.MaxElapsedTime = 0

	_ = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx))
	return res
}
