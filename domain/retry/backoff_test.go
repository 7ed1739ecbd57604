package retry

import (
	"testing"
	"time"

	"github.com/artpar/llmproxy/domain/route"
)

func policy() route.RetryPolicy {
	return route.RetryPolicy{MaxAttempts: 5, BackoffMs: 100, MaxBackoffMs: 1000}
}

func TestComputeDelayCapsAtMaxBackoff(t *testing.T) {
	p := policy()
	// At i=5, 100*2^5=3200 > 1000, so delay must be capped at 1000 before
	// jitter is applied: full jitter samples from [500,1000].
	d := ComputeDelay(5, p, func() float64 { return 1.0 })
	if d > 1000*time.Millisecond {
		t.Errorf("delay = %v, want <= 1000ms", d)
	}
	if d < 500*time.Millisecond {
		t.Errorf("delay = %v, want >= 500ms (full jitter lower bound)", d)
	}
}

func TestComputeDelayGrowsExponentially(t *testing.T) {
	p := policy()
	// With randFloat pinned to 0, the sampled value is exactly delay/2.
	d0 := ComputeDelay(0, p, func() float64 { return 0 })
	d1 := ComputeDelay(1, p, func() float64 { return 0 })
	if d0 != 50*time.Millisecond {
		t.Errorf("d0 = %v, want 50ms", d0)
	}
	if d1 != 100*time.Millisecond {
		t.Errorf("d1 = %v, want 100ms", d1)
	}
}

func TestComputeDelayDeterministicWithPinnedRand(t *testing.T) {
	p := policy()
	a := ComputeDelay(2, p, func() float64 { return 0.5 })
	b := ComputeDelay(2, p, func() float64 { return 0.5 })
	if a != b {
		t.Errorf("same randFloat produced different delays: %v != %v", a, b)
	}
}

func TestParseRetryAfterDeltaSeconds(t *testing.T) {
	d, ok := ParseRetryAfter("5")
	if !ok {
		t.Fatal("expected ok")
	}
	if d != 5*time.Second {
		t.Errorf("d = %v, want 5s", d)
	}
}

func TestParseRetryAfterEmpty(t *testing.T) {
	if _, ok := ParseRetryAfter(""); ok {
		t.Error("expected not ok for empty header")
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(10 * time.Second).UTC().Format(time.RFC1123)
	future = future[:len(future)-3] + "GMT" // http.ParseTime expects GMT
	d, ok := ParseRetryAfter(future)
	if !ok {
		t.Fatal("expected ok")
	}
	if d <= 0 || d > 11*time.Second {
		t.Errorf("d = %v, want roughly 10s", d)
	}
}

func TestResolveDelayPrefersLargerRetryAfter(t *testing.T) {
	p := policy()
	got := ResolveDelay(100*time.Millisecond, 5*time.Second, true, p)
	want := time.Duration(p.MaxBackoffMs*4) * time.Millisecond // capped
	if got != want {
		t.Errorf("got %v, want %v (capped at max_backoff_ms*4)", got, want)
	}
}

func TestResolveDelayIgnoresSmallerRetryAfter(t *testing.T) {
	p := policy()
	got := ResolveDelay(500*time.Millisecond, 10*time.Millisecond, true, p)
	if got != 500*time.Millisecond {
		t.Errorf("got %v, want 500ms (computed delay wins)", got)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	retryable := []int{408, 425, 429, 500, 502, 503, 504}
	for _, s := range retryable {
		if !IsRetryableStatus(s) {
			t.Errorf("status %d should be retryable", s)
		}
	}
	nonRetryable := []int{400, 401, 403, 404, 422}
	for _, s := range nonRetryable {
		if IsRetryableStatus(s) {
			t.Errorf("status %d should not be retryable", s)
		}
	}
}
