package wal

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultRetryInitialInterval = 200 * time.Millisecond
	defaultRetryMaxInterval     = 5 * time.Second
	defaultRetryMaxElapsed      = 2 * time.Minute
)

// RetryWithJitter retries op with exponential backoff and jitter until it
// succeeds, ctx is cancelled, or the backoff gives up. Used by Replay to
// drain journaled-but-unflushed entries on boot without hammering the
// writer in a tight loop.
func RetryWithJitter(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultRetryInitialInterval
	b.MaxInterval = defaultRetryMaxInterval
	b.MaxElapsedTime = defaultRetryMaxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
