package mretry

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// NewBackOff builds a cenkalti/backoff/v4 exponential backoff from cfg,
// bounded to cfg.MaxRetries attempts and stopped early when ctx is done.
func NewBackOff(ctx context.Context, cfg Config) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialBackoff
	eb.MaxInterval = cfg.MaxBackoff
	eb.RandomizationFactor = cfg.JitterFactor
	eb.Multiplier = 2.0
	eb.MaxElapsedTime = 0

	withMax := backoff.WithMaxRetries(eb, uint64(cfg.MaxRetries))

	return backoff.WithContext(withMax, ctx)
}

// Do runs fn under cfg's retry schedule, retrying while fn returns a non-nil
// error, up to cfg.MaxRetries attempts or ctx cancellation.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return backoff.Retry(fn, NewBackOff(ctx, cfg))
}
