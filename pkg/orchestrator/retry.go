package orchestrator

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sentryline/guardcore/pkg/confirm"
	"github.com/sentryline/guardcore/pkg/guarderr"
)

// RetryPolicy bounds a transient-error retry loop to a budget strictly
// less than the confirmation's remaining lifetime — retrying past
// expiry would just trade one rejection (TokenExpired) for another
// (RetryExhausted) while burning the outbound call's wall-clock for
// nothing.
type RetryPolicy struct {
	limiter *rate.Limiter
	budget  time.Duration
}

// NewRetryPolicy builds a policy that keeps retrying until budget has
// elapsed, rate-limited by limiter so retries don't burst immediately
// after a failure.
func NewRetryPolicy(limiter *rate.Limiter, budget time.Duration) *RetryPolicy {
	return &RetryPolicy{limiter: limiter, budget: budget}
}

// Wrap adapts sideEffect into a Dispatch-compatible closure that retries
// under this policy, bounded to token's remaining lifetime at now. The
// slot held by the enforcer for the confirmation spans every retry
// attempt, since Dispatch only calls the wrapped closure once.
func (p *RetryPolicy) Wrap(token confirm.Token, now time.Time, sideEffect func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return p.RunWithRetry(ctx, token, now, sideEffect)
	}
}

// RunWithRetry retries fn until it succeeds, the policy's budget is
// exhausted, or the confirmation's remaining lifetime (relative to now)
// is not more than the policy's budget — in which case the budget is
// clamped to just under the lifetime that remains.
func (p *RetryPolicy) RunWithRetry(ctx context.Context, token confirm.Token, now time.Time, fn func(ctx context.Context) error) error {
	remaining := token.ExpiresAt.Sub(now)
	budget := p.budget
	if remaining <= budget {
		budget = remaining - time.Nanosecond
	}
	if budget <= 0 {
		return guarderr.New(guarderr.KindTokenExpired, "confirmation has no remaining lifetime for a retry")
	}

	deadline := now.Add(budget)
	var lastErr error
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return guarderr.Wrap(guarderr.KindRetryExhausted, "retry rate limiter wait failed", err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if k, ok := guarderr.KindOf(lastErr); ok && k.IsHardStop() {
			// Integrity/security failures are never retried.
			return lastErr
		}

		if time.Now().After(deadline) {
			return guarderr.Wrap(guarderr.KindRetryExhausted, "retry budget exhausted before success", lastErr)
		}
	}
}
