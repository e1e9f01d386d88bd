package llms

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"
)

// RetryingProvider wraps a Provider with the failsafe-go retry/backoff
// envelope of spec.md §4.7 step 5: retry transient failures (5xx, network
// error, timeout) with delay baseDelay between attempts, making at most
// maxAttempts attempts in all; 429 honors Retry-After when present, otherwise exponential
// backoff bounded by baseDelay·2^k; any other 4xx is fatal. Grounded on
// the teacher's internal/pkg/voice/download_manager.go
// buildRetryPolicyWithCleanup retrypolicy.Builder idiom.
type RetryingProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
	logger      zerolog.Logger
}

func NewRetryingProvider(inner Provider, maxAttempts int, baseDelay time.Duration, logger zerolog.Logger) *RetryingProvider {
	return &RetryingProvider{inner: inner, maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

func (p *RetryingProvider) Name() string { return p.inner.Name() }

func (p *RetryingProvider) Complete(ctx context.Context, req Request) (Response, error) {
	policy := p.buildPolicy()
	executor := failsafe.NewExecutor[Response](policy)

	return executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[Response]) (Response, error) {
		return p.inner.Complete(ctx, req)
	})
}

func (p *RetryingProvider) buildPolicy() failsafe.Policy[Response] {
	builder := retrypolicy.Builder[Response]().
		HandleIf(func(_ Response, err error) bool {
			if err == nil {
				return false
			}
			if isFatalHTTPError(err) {
				return false
			}
			return true
		}).
		AbortIf(func(_ Response, err error) bool {
			return isFatalHTTPError(err)
		}).
		WithMaxAttempts(p.maxAttempts).
		ReturnLastFailure().
		WithDelayFunc(func(exec failsafe.ExecutionAttempt[Response]) time.Duration {
			var httpErr *HTTPError
			if errors.As(exec.LastError(), &httpErr) && httpErr.StatusCode == 429 {
				if httpErr.RetryAfter > 0 {
					return httpErr.RetryAfter
				}
				backoff := p.baseDelay
				for k := 1; k < exec.Attempts(); k++ {
					backoff *= 2
				}
				return backoff
			}
			return p.baseDelay
		}).
		OnRetry(func(evt failsafe.ExecutionEvent[Response]) {
			p.logger.Warn().
				Int("attempt", evt.Attempts()).
				Err(evt.LastError()).
				Msg("AI provider request failed, retrying")
		})

	return builder.Build()
}

// isFatalHTTPError reports whether err is a 4xx response other than 429
// (rate limit), which spec §4.7's Failure semantics treats as immediately
// fatal (auth/quota errors), never retried.
func isFatalHTTPError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.StatusCode == 429 {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
}
