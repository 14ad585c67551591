// Package enforcer implements the single-request slot: a thin base-layer
// wrapper that atomically acquires a request slot for a confirmation
// before any network operation, holds it for the call's lifetime, and
// releases it irreversibly on return. Network adapters are never trusted
// to self-police single-use; every externally-visible transmission path
// must route through here, and there is no bypass API that takes
// anything but a confirmation.
package enforcer

import (
	"context"
	"sync"
	"time"

	"github.com/sentryline/guardcore/pkg/confirm"
	"github.com/sentryline/guardcore/pkg/guarderr"
)

// slotState tracks whether a confirmation's slot has ever been acquired.
// Once dead, it is dead forever — even a failed call does not restore
// it.
type slotState int

const (
	slotFree slotState = iota
	slotHeld
	slotDead
)

// Enforcer guards the acquire/hold/release lifecycle of a request slot
// per confirmation_id.
type Enforcer struct {
	mu    sync.Mutex
	slots map[string]slotState
}

// New constructs an empty Enforcer.
func New() *Enforcer {
	return &Enforcer{slots: make(map[string]slotState)}
}

// Call performs the mandated ordering: (i) validate the token is not
// expired, (ii) consume it via registry, (iii) only then invoke fn,
// which is where the caller's network or filesystem-mutating effect
// happens. The slot is released when fn returns, successfully or not,
// and can never be re-acquired afterward — a failed call requires a
// fresh human authorization to retry, not a fresh acquisition of this
// same slot.
func (e *Enforcer) Call(
	ctx context.Context,
	registry *confirm.Registry,
	token confirm.Token,
	actionPayload interface{},
	now time.Time,
	fn func(ctx context.Context) error,
) error {
	if now.After(token.ExpiresAt) {
		return guarderr.New(guarderr.KindTokenExpired, "confirmation expired before slot acquisition")
	}

	if !e.acquire(token.ConfirmationID) {
		return guarderr.New(guarderr.KindReplayAttempt, "request slot already consumed for this confirmation")
	}
	defer e.release(token.ConfirmationID)

	// Strict happens-before: consume() completes before fn's first
	// socket/read operation. This call and fn() below are sequential on
	// this goroutine, which is sufficient to establish happens-before —
	// no lock is held across fn, so fn's I/O never blocks another
	// confirmation's acquire/consume.
	if err := registry.Consume(token, actionPayload, now); err != nil {
		return err
	}

	return fn(ctx)
}

// acquire flips a fresh slot to held and reports success, or reports
// failure if the slot was already held or is dead.
func (e *Enforcer) acquire(confirmationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.slots[confirmationID] {
	case slotHeld, slotDead:
		return false
	}
	e.slots[confirmationID] = slotHeld
	return true
}

// release marks the slot dead — irreversibly. No future acquire for this
// confirmation_id will ever succeed again.
func (e *Enforcer) release(confirmationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slots[confirmationID] = slotDead
}

// IsDead reports whether a confirmation's slot has been used (acquired
// and released) at least once.
func (e *Enforcer) IsDead(confirmationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[confirmationID] == slotDead
}
