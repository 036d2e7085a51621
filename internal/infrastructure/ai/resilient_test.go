package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

type flakyCompleter struct {
	failures int
	err      error
	calls    int
}

func (f *flakyCompleter) Name() string { return "flaky" }

func (f *flakyCompleter) Complete(context.Context, ports.CompletionRequest) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return `{"level":"medium"}`, nil
}

func fastResilient(inner ports.Completer) *resilientCompleter {
	c := newResilientCompleter(inner, rate.NewLimiter(rate.Inf, 1))
	c.initialInterval = time.Millisecond
	c.maxInterval = 2 * time.Millisecond
	return c
}

func TestResilientCompleter_RetriesTransientErrors(t *testing.T) {
	inner := &flakyCompleter{failures: 2, err: errors.New("HTTP 503")}
	text, err := fastResilient(inner).Complete(context.Background(), ports.CompletionRequest{User: "u"})
	require.NoError(t, err)
	assert.Equal(t, `{"level":"medium"}`, text)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientCompleter_GivesUp(t *testing.T) {
	inner := &flakyCompleter{failures: 10, err: errors.New("HTTP 503")}
	_, err := fastResilient(inner).Complete(context.Background(), ports.CompletionRequest{User: "u"})
	assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
	assert.Equal(t, RetryMaxAttempts+1, inner.calls)
}

func TestResilientCompleter_PermanentErrorsStopImmediately(t *testing.T) {
	inner := &flakyCompleter{failures: 10, err: backoff.Permanent(errors.New("HTTP 401"))}
	_, err := fastResilient(inner).Complete(context.Background(), ports.CompletionRequest{User: "u"})
	assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
	assert.Equal(t, 1, inner.calls)
}

func TestResilientCompleter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inner := &flakyCompleter{}
	c := newResilientCompleter(inner, rate.NewLimiter(rate.Limit(1), 0))
	_, err := c.Complete(ctx, ports.CompletionRequest{User: "u"})
	assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
	assert.Zero(t, inner.calls)
}
