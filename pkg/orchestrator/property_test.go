//go:build property
// +build property

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/time/rate"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// A hard-stop error must never be retried, regardless of how much budget
// remains: exactly one call to fn no matter the configured budget.
func TestProperty_HardStopErrorIsNeverRetriedRegardlessOfBudget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("hard-stop kinds short-circuit after exactly one attempt", prop.ForAll(
		func(budgetMillis int) bool {
			p := NewRetryPolicy(rate.NewLimiter(rate.Inf, 1), time.Duration(budgetMillis)*time.Millisecond)
			now := time.Now()
			calls := 0
			err := p.RunWithRetry(context.Background(), tokenExpiringIn(time.Hour, now), now, func(ctx context.Context) error {
				calls++
				return guarderr.New(guarderr.KindTokenTampered, "tampered")
			})
			k, ok := guarderr.KindOf(err)
			return calls == 1 && ok && k == guarderr.KindTokenTampered
		},
		gen.IntRange(1, 10000),
	))

	properties.TestingRun(t)
}

// The effective retry budget is always clamped to the confirmation's
// remaining lifetime: a policy budget longer than the token's remaining
// life never runs past the token's expiry.
func TestProperty_BudgetNeverExceedsRemainingLifetime(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("a policy budget longer than token lifetime is clamped down", prop.ForAll(
		func(remainingMillis int) bool {
			remaining := time.Duration(remainingMillis) * time.Millisecond
			p := NewRetryPolicy(rate.NewLimiter(rate.Inf, 1), time.Hour)
			now := time.Now()
			start := time.Now()
			_ = p.RunWithRetry(context.Background(), tokenExpiringIn(remaining, now), now, func(ctx context.Context) error {
				return guarderr.New(guarderr.KindNavigationFailure, "still failing")
			})
			elapsed := time.Since(start)
			// Generous slack: the loop must not run dramatically longer than
			// the clamped budget allowed.
			return elapsed < remaining+500*time.Millisecond
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
