// Package retry implements the retry/backoff discipline every call to the
// upstream calendar API goes through. It classifies upstream failures,
// applies exponential backoff (honoring a server-provided Retry-After when
// present), and accumulates process-wide call metrics.
package retry

import (
	"context"
	"time"

	"github.com/calensync/backend/internal/apperr"
)

// Policy bounds how an Executor retries a single operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultPolicy is the policy used by upstream calendar calls unless a
// caller overrides it.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    30 * time.Second,
	Multiplier:  2.0,
}

// Executor runs operations under a Policy, classifying failures and
// recording them to a shared Metrics instance.
type Executor struct {
	metrics *Metrics
}

// NewExecutor returns an Executor backed by its own Metrics. Share one
// Executor across a process to get a single aggregated metrics view.
func NewExecutor() *Executor {
	return &Executor{metrics: &Metrics{}}
}

// Metrics returns the Executor's accumulated counters.
func (e *Executor) Metrics() Snapshot {
	return e.metrics.Snapshot()
}

// Op is the operation retried by Execute. It should be idempotent, or at
// least safe to repeat after a transient upstream failure.
type Op func(ctx context.Context) error

// Execute runs op, retrying on transient classifications up to
// policy.MaxAttempts times. It returns nil on success, ctx.Err() if the
// context is cancelled mid-wait, or the last classified error otherwise.
//
// classAuthFailed and classOther are never retried: a bad credential or an
// unclassified failure will not resolve itself by waiting.
func (e *Executor) Execute(ctx context.Context, policy Policy, op Op) error {
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		start := now()
		err := op(ctx)
		e.metrics.recordCall(now().Sub(start))

		if err == nil {
			return nil
		}

		c, retryAfter := classify(err)
		e.metrics.recordClass(c)
		lastErr = classifiedError(c, err)

		if !retryable(c) {
			return lastErr
		}
		if attempt == policy.MaxAttempts-1 {
			return lastErr
		}

		delay := backoffDelay(policy, attempt)
		if retryAfter > 0 {
			fromHeader := time.Duration(retryAfter) * time.Second
			if fromHeader > delay {
				delay = fromHeader
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// retryable reports whether a classification should be retried at all.
// Quota errors are never retried: the quota resets on its own schedule and
// hammering it only burns more of it. Auth failures and unclassified
// errors won't resolve by waiting either.
func retryable(c class) bool {
	switch c {
	case classRateLimited, classNetwork:
		return true
	default:
		return false
	}
}

func classifiedError(c class, cause error) error {
	switch c {
	case classRateLimited:
		return apperr.Wrap(apperr.UpstreamRateLimit, "upstream rate limit exceeded", cause)
	case classQuota:
		return apperr.Wrap(apperr.UpstreamQuota, "upstream quota exceeded", cause)
	case classAuthFailed:
		return apperr.Wrap(apperr.UpstreamAuth, "upstream rejected credentials", cause)
	case classNetwork:
		return apperr.Wrap(apperr.UpstreamNetwork, "upstream network error", cause)
	default:
		return apperr.Wrap(apperr.Internal, "upstream call failed", cause)
	}
}

// backoffDelay computes min(maxDelay, baseDelay * multiplier^attempt).
func backoffDelay(p Policy, attempt int) time.Duration {
	delay := float64(p.BaseDelay)
	mult := 1.0
	for i := 0; i < attempt; i++ {
		mult *= p.Multiplier
	}
	delay *= mult

	max := float64(p.MaxDelay)
	if delay > max {
		delay = max
	}
	return time.Duration(delay)
}
