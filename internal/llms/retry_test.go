package llms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	name     string
	attempts int
	fail     func(attempt int) error
	response Response
}

func (c *countingProvider) Name() string { return c.name }

func (c *countingProvider) Complete(ctx context.Context, req Request) (Response, error) {
	c.attempts++
	if c.fail != nil {
		if err := c.fail(c.attempts); err != nil {
			return Response{}, err
		}
	}
	return c.response, nil
}

func TestRetryingProviderRetriesTransientError(t *testing.T) {
	inner := &countingProvider{
		response: Response{Content: "ok"},
		fail: func(attempt int) error {
			if attempt < 3 {
				return errors.New("transient network error")
			}
			return nil
		},
	}
	p := NewRetryingProvider(inner, 5, time.Millisecond, zerolog.Nop())

	resp, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, inner.attempts)
}

func TestRetryingProviderAbortsOnFatal4xx(t *testing.T) {
	inner := &countingProvider{
		fail: func(attempt int) error {
			return &HTTPError{StatusCode: 401, Body: "unauthorized"}
		},
	}
	p := NewRetryingProvider(inner, 5, time.Millisecond, zerolog.Nop())

	_, err := p.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.attempts, "fatal 4xx must not be retried")
}

func TestRetryingProviderRetries429(t *testing.T) {
	inner := &countingProvider{
		response: Response{Content: "ok"},
		fail: func(attempt int) error {
			if attempt < 2 {
				return &HTTPError{StatusCode: 429}
			}
			return nil
		},
	}
	p := NewRetryingProvider(inner, 5, time.Millisecond, zerolog.Nop())

	resp, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, inner.attempts)
}

func TestRetryingProviderGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &countingProvider{
		fail: func(attempt int) error { return errors.New("always fails") },
	}
	p := NewRetryingProvider(inner, 3, time.Millisecond, zerolog.Nop())

	_, err := p.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 3, inner.attempts)
}

func TestIsFatalHTTPErrorClassification(t *testing.T) {
	assert.True(t, isFatalHTTPError(&HTTPError{StatusCode: 401}))
	assert.True(t, isFatalHTTPError(&HTTPError{StatusCode: 404}))
	assert.False(t, isFatalHTTPError(&HTTPError{StatusCode: 429}))
	assert.False(t, isFatalHTTPError(&HTTPError{StatusCode: 500}))
	assert.False(t, isFatalHTTPError(errors.New("plain error")))
}

func TestRetryingProviderNamePassesThrough(t *testing.T) {
	inner := &countingProvider{name: "custom"}
	p := NewRetryingProvider(inner, 1, time.Millisecond, zerolog.Nop())
	assert.Equal(t, "custom", p.Name())
}
