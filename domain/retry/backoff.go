// Package retry implements the bounded full-jitter backoff executor that
// wraps every upstream attempt.
package retry

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/llmproxy/domain/route"
)

// ComputeDelay returns the full-jitter delay to sleep before attempt i
// (0-indexed: i is the retry number, not the first attempt), per
// delay = min(max_backoff_ms, backoff_ms * 2^i), sampled uniformly from
// [delay/2, delay]. randFloat, when non-nil, replaces rand.Float64 for
// deterministic tests; it must return a value in [0,1).
func ComputeDelay(i int, policy route.RetryPolicy, randFloat func() float64) time.Duration {
	if policy.MaxBackoffMs <= 0 || policy.BackoffMs <= 0 {
		return 0
	}

	delay := policy.BackoffMs
	shift := uint(i)
	if shift < 62 { // guard against overflow for large attempt counts
		scaled := policy.BackoffMs << shift
		if scaled/policy.BackoffMs == (1 << shift) { // no overflow occurred
			delay = scaled
		} else {
			delay = policy.MaxBackoffMs
		}
	} else {
		delay = policy.MaxBackoffMs
	}
	if delay > policy.MaxBackoffMs {
		delay = policy.MaxBackoffMs
	}

	rf := randFloat
	if rf == nil {
		rf = rand.Float64
	}
	low := delay / 2
	span := delay - low
	jittered := low + int64(rf()*float64(span+1))
	if jittered > delay {
		jittered = delay
	}

	return time.Duration(jittered) * time.Millisecond
}

// ParseRetryAfter parses a Retry-After header value in either
// delta-seconds or HTTP-date form. ok is false when header is empty or
// unparseable.
func ParseRetryAfter(header string) (d time.Duration, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0, true
		}
		return time.Duration(secs) * time.Second, true
	}

	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}

// ResolveDelay combines the computed backoff delay with an optional
// Retry-After hint: the larger of the two wins, capped at
// max_backoff_ms * 4.
func ResolveDelay(computed time.Duration, retryAfter time.Duration, hasRetryAfter bool, policy route.RetryPolicy) time.Duration {
	delay := computed
	if hasRetryAfter && retryAfter > delay {
		delay = retryAfter
	}
	cap := time.Duration(policy.MaxBackoffMs*4) * time.Millisecond
	if delay > cap {
		delay = cap
	}
	return delay
}

// IsRetryableStatus reports whether an upstream HTTP status code is one of
// the retryable classes.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, // 408
		http.StatusTooEarly,          // 425
		http.StatusTooManyRequests,   // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,           // 502
		http.StatusServiceUnavailable,   // 503
		http.StatusGatewayTimeout:       // 504
		return true
	}
	return false
}
