package run

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"goldpipe/pkg/core/llm"
)

func fastPolicy(maxRetries int) retryPolicy {
	return retryPolicy{
		MaxRetries:       maxRetries,
		BaseBackoff:      time.Millisecond,
		RateLimitBackoff: 2 * time.Millisecond,
	}
}

func TestWithRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: flaky", llm.ErrUpstream)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry = %v, want success", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryNonRetryableStopsImmediately(t *testing.T) {
	boom := errors.New("bad input")
	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), fastPolicy(5), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("withRetry = %v, want original error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries)", calls)
	}
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), fastPolicy(2), func(context.Context) error {
		calls++
		return fmt.Errorf("%w: attempt %d", llm.ErrRateLimited, calls)
	})
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("withRetry = %v, want rate-limit error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want initial attempt plus 2 retries", calls)
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, zap.NewNop(), fastPolicy(10), func(context.Context) error {
		calls++
		cancel()
		return fmt.Errorf("%w: flaky", llm.ErrUpstream)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("withRetry = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetryCallTimeoutIsTransient(t *testing.T) {
	calls := 0
	p := fastPolicy(2)
	p.Timeout = 5 * time.Millisecond
	err := withRetry(context.Background(), zap.NewNop(), p, func(callCtx context.Context) error {
		calls++
		if calls == 1 {
			<-callCtx.Done()
			return callCtx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry = %v, want recovery after timeout", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
