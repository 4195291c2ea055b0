package run

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"goldpipe/pkg/core/llm"
)

// retryPolicy bounds transient-failure retries for one stage invocation.
type retryPolicy struct {
	MaxRetries int
	Timeout    time.Duration
	// Base backoff doubles per attempt; rate-limited errors start from the
	// longer schedule so quota windows have time to reset.
	BaseBackoff      time.Duration
	RateLimitBackoff time.Duration
}

func defaultBackoff(p retryPolicy) retryPolicy {
	if p.BaseBackoff == 0 {
		p.BaseBackoff = time.Second
	}
	if p.RateLimitBackoff == 0 {
		p.RateLimitBackoff = 5 * time.Second
	}
	return p
}

// withRetry runs fn under a per-call timeout, retrying transient inference
// failures with exponential backoff. Non-retryable errors return
// immediately; exhausted retries return the last error.
func withRetry(ctx context.Context, logger *zap.Logger, p retryPolicy, fn func(ctx context.Context) error) error {
	p = defaultBackoff(p)

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.BaseBackoff
			if errors.Is(lastErr, llm.ErrRateLimited) {
				backoff = p.RateLimitBackoff
			}
			backoff <<= attempt - 1
			logger.Warn("retrying stage after transient failure",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err

		// Timeouts of the external call are transient; caller cancellation
		// is not.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !llm.Retryable(err) {
			return err
		}
	}
	return lastErr
}
