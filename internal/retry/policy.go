// Package retry implements a reusable exponential backoff policy with jitter
// and a pluggable retryable-error predicate, parameterized per external
// dependency.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// Policy describes how an operation is retried. The zero value is not
// usable; construct policies with NewPolicy or DefaultPolicy.
type Policy struct {
	MaxRetries     int                  // attempts beyond the first
	BaseDelay      time.Duration        // first backoff delay
	MaxDelay       time.Duration        // backoff ceiling
	Multiplier     float64              // delay growth factor
	JitterFraction float64              // random jitter, fraction of the delay
	Retryable      func(err error) bool // nil means RetryableError

	// sleep is injectable for tests. Defaults to a context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy constructs a policy with the given parameters and the default
// retryable predicate.
func NewPolicy(maxRetries int, baseDelay, maxDelay time.Duration, multiplier, jitterFraction float64) *Policy {
	return &Policy{
		MaxRetries:     maxRetries,
		BaseDelay:      baseDelay,
		MaxDelay:       maxDelay,
		Multiplier:     multiplier,
		JitterFraction: jitterFraction,
	}
}

// DefaultPolicy returns the policy used for external language-service calls:
// 3 retries, 1s base delay doubling to a 10s cap, up to 30% jitter.
func DefaultPolicy() *Policy {
	return NewPolicy(3, 1*time.Second, 10*time.Second, 2.0, 0.3)
}

// WithRetryable sets the retryable predicate and returns the policy for chaining.
func (p *Policy) WithRetryable(fn func(err error) bool) *Policy {
	p.Retryable = fn
	return p
}

// WithSleep overrides the sleep function. Intended for tests.
func (p *Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Policy {
	p.sleep = fn
	return p
}

// Delay returns the backoff delay before retry attempt n (0-based), without
// jitter. Exported so callers can reason about worst-case waits.
func (p *Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// jittered adds up to JitterFraction of random jitter on top of d.
func (p *Policy) jittered(d time.Duration) time.Duration {
	if p.JitterFraction <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*p.JitterFraction*float64(d))
}

func (p *Policy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
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

// Do runs op, retrying on retryable errors with exponential backoff until
// the retry budget is exhausted or the context is done. The error from the
// last attempt is returned.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = RetryableError
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !retryable(err) {
			return err
		}
		if sleepErr := p.doSleep(ctx, p.jittered(p.Delay(attempt))); sleepErr != nil {
			return errors.New(sleepErr).
				Component("retry").
				Category(errors.CategoryCancellation).
				Context("attempts", attempt+1).
				Build()
		}
	}
}

// HTTPStatusError signals a non-2xx response from an external service.
// It carries the status code so the retryable predicate can classify it.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return http.StatusText(e.StatusCode) + ": " + e.Body
	}
	return http.StatusText(e.StatusCode)
}

// RetryableStatus reports whether an HTTP status code warrants a retry.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryableMessages are error text fragments from upstream services that
// indicate transient overload.
var retryableMessages = []string{
	"overloaded",
	"rate limit",
	"temporarily unavailable",
}

// RetryableError is the default predicate: retryable HTTP statuses
// (5xx, 429, 503), transient error text, and transport-level failures.
// Context cancellation is never retryable.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return RetryableStatus(statusErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	// Network-level failures (connection refused, resets, DNS) surface as
	// *url.Error or *net.OpError; treat anything mentioning the transport
	// as transient up to the same retry budget.
	return strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "eof")
}
