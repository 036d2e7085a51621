package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

const (
	// RetryMaxAttempts bounds retries after the first call.
	RetryMaxAttempts = 2
	// RetryInitialInterval is the first backoff delay.
	RetryInitialInterval = 250 * time.Millisecond
	// RetryMaxInterval caps a single backoff delay.
	RetryMaxInterval = 2 * time.Second
	// CallsPerSecond is the sustained model call rate.
	CallsPerSecond = 5
	// CallBurst is the number of calls allowed at once.
	CallBurst = 5
)

// resilientCompleter rate limits calls and retries transient failures.
// Every error it returns wraps domain.ErrModelUnavailable.
type resilientCompleter struct {
	inner           ports.Completer
	limiter         *rate.Limiter
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

func newResilientCompleter(inner ports.Completer, limiter *rate.Limiter) *resilientCompleter {
	return &resilientCompleter{
		inner:           inner,
		limiter:         limiter,
		maxRetries:      RetryMaxAttempts,
		initialInterval: RetryInitialInterval,
		maxInterval:     RetryMaxInterval,
	}
}

func (c *resilientCompleter) Name() string {
	return c.inner.Name()
}

func (c *resilientCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	var text string
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		out, err := c.inner.Complete(ctx, req)
		if err != nil {
			return err
		}
		text = out
		return nil
	}
	if err := backoff.Retry(operation, c.newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrModelUnavailable, c.inner.Name(), err)
	}
	return text, nil
}

func (c *resilientCompleter) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
}
