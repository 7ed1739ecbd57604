package retry

import (
	"context"
	"time"

	"github.com/artpar/llmproxy/domain/proxy"
	"github.com/artpar/llmproxy/domain/route"
)

// Outcome is one attempt's result, as classified by the caller performing
// the actual upstream call.
type Outcome struct {
	Status     int
	RetryAfter string // raw Retry-After header value, if any
	Retryable  bool
	Err        *proxy.Error
}

// AttemptFunc performs one upstream attempt. i is 0-indexed.
type AttemptFunc func(ctx context.Context, i int) Outcome

// Execute runs attempt up to policy.MaxAttempts times, sleeping a
// full-jitter bounded backoff between retryable failures. It returns the
// last outcome and, on success, a nil error. On exhaustion it returns the
// last outcome alongside a RetriesExhausted error wrapping its Err.
// randFloat overrides the jitter source for deterministic tests.
func Execute(ctx context.Context, policy route.RetryPolicy, randFloat func() float64, attempt AttemptFunc) (Outcome, error) {
	var last Outcome
	for i := 0; i < policy.MaxAttempts; i++ {
		last = attempt(ctx, i)
		if last.Err == nil {
			return last, nil
		}
		if !last.Retryable || i == policy.MaxAttempts-1 {
			break
		}

		delay := ComputeDelay(i, policy, randFloat)
		retryAfter, hasRetryAfter := ParseRetryAfter(last.RetryAfter)
		delay = ResolveDelay(delay, retryAfter, hasRetryAfter, policy)

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(delay):
		}
	}
	return last, proxy.NewRetriesExhausted(last.Err)
}
