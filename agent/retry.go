package agent

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

const (
	defaultBaseBackoff = 200 * time.Millisecond
	defaultMaxBackoff  = 2 * time.Second

	// Rate limited calls back off far longer than transient failures.
	rateLimitBaseBackoff = 30 * time.Second
	rateLimitMaxBackoff  = 120 * time.Second
)

// RetryPolicy governs provider-call retries inside a single run. The bridge
// never retries a run; this policy only smooths over per-call provider
// hiccups within one execution attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// RateLimitMaxAttempts is the retry budget for rate limit errors.
	// Defaults to 3 when zero.
	RateLimitMaxAttempts int
	// RateLimitBaseBackoff is the initial backoff after a rate limit error.
	RateLimitBaseBackoff time.Duration
	// RateLimitMaxBackoff caps rate limit backoff growth.
	RateLimitMaxBackoff time.Duration
}

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          1,
		BaseBackoff:          defaultBaseBackoff,
		MaxBackoff:           defaultMaxBackoff,
		RateLimitMaxAttempts: 3,
		RateLimitBaseBackoff: rateLimitBaseBackoff,
		RateLimitMaxBackoff:  rateLimitMaxBackoff,
	}
}

func normalizeRetryPolicy(in RetryPolicy) RetryPolicy {
	out := in
	if out.MaxAttempts < 1 {
		out.MaxAttempts = 1
	}
	if out.BaseBackoff <= 0 {
		out.BaseBackoff = defaultBaseBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = defaultMaxBackoff
	}
	if out.MaxBackoff < out.BaseBackoff {
		out.MaxBackoff = out.BaseBackoff
	}
	if out.RateLimitMaxAttempts <= 0 {
		out.RateLimitMaxAttempts = 3
	}
	if out.RateLimitBaseBackoff <= 0 {
		out.RateLimitBaseBackoff = rateLimitBaseBackoff
	}
	if out.RateLimitMaxBackoff <= 0 {
		out.RateLimitMaxBackoff = rateLimitMaxBackoff
	}
	if out.RateLimitMaxBackoff < out.RateLimitBaseBackoff {
		out.RateLimitMaxBackoff = out.RateLimitBaseBackoff
	}
	return out
}

// IsRateLimitError classifies provider errors that should use the slower
// rate limit backoff schedule.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests")
}

// rateLimitBackoffForAttempt grows 1.5x per retry with ±20% jitter.
func (p RetryPolicy) rateLimitBackoffForAttempt(retryNumber int) time.Duration {
	if retryNumber < 1 {
		retryNumber = 1
	}
	delay := p.RateLimitBaseBackoff
	for i := 1; i < retryNumber; i++ {
		delay = delay * 3 / 2
		if delay >= p.RateLimitMaxBackoff {
			delay = p.RateLimitMaxBackoff
			break
		}
	}
	if delay > p.RateLimitMaxBackoff {
		delay = p.RateLimitMaxBackoff
	}
	jitter := time.Duration(float64(delay) * (rand.Float64()*0.4 - 0.2))
	return delay + jitter
}

// backoffForAttempt doubles per retry up to the cap.
func (p RetryPolicy) backoffForAttempt(retryNumber int) time.Duration {
	if retryNumber < 1 {
		retryNumber = 1
	}
	delay := p.BaseBackoff
	for i := 1; i < retryNumber; i++ {
		delay *= 2
		if delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// sleepFor waits out a backoff, returning early when ctx is canceled.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
