// Package confirm implements the Confirmation Registry: single-use,
// time-bound, cryptographically-bound authorization tokens. Single-use is
// a process-wide invariant — under N concurrent consumers for the same
// token, exactly one returns ok and N-1 return ReplayAttempt. There is no
// reset, no disable, no clear: once the consumed set is checked in, it
// is checked in forever.
package confirm

import (
	"sync"
	"time"

	"github.com/sentryline/guardcore/pkg/canonicalize"
	"github.com/sentryline/guardcore/pkg/guarderr"
	"github.com/sentryline/guardcore/pkg/ids"
)

// Kind distinguishes a single-action confirmation from a batch one; the
// two carry different maximum lifetimes.
type Kind string

const (
	KindSingle Kind = "SINGLE"
	KindBatch  Kind = "BATCH"
)

// MaxLifetime is the spec-mandated ceiling on expires_at - issued_at for
// each Kind.
var MaxLifetime = map[Kind]time.Duration{
	KindSingle: 15 * time.Minute,
	KindBatch:  30 * time.Minute,
}

// Token is an immutable confirmation record. There are no setters;
// construct only via the Registry's Mint, which enforces every
// invariant at construction time so an invalid Token cannot exist.
type Token struct {
	ConfirmationID string
	BoundHash      [32]byte
	IssuedAt       time.Time
	ExpiresAt      time.Time
	ActorID        string
	Kind           Kind
}

// Registry mints and consumes confirmation tokens. consume is serialized
// under a single mutex covering lookup, validation, and insertion into
// the consumed set — a short critical section that never spans network
// I/O.
type Registry struct {
	mu       sync.Mutex
	consumed map[string]bool
	issued   map[string]Token
	clock    func() time.Time
}

// NewRegistry constructs an empty, in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		consumed: make(map[string]bool),
		issued:   make(map[string]Token),
		clock:    time.Now,
	}
}

// WithClock overrides the clock, for deterministic tests of expiry.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

// Mint computes bound_hash = SHA256(canonical(actionPayload)) and issues
// a fresh Token for actorID, bounding its lifetime to kind's maximum.
// requestedLifetime is clamped to that maximum, never extended past it.
func (r *Registry) Mint(actionPayload interface{}, actorID string, kind Kind, requestedLifetime time.Duration) (Token, error) {
	if err := ids.ValidateUUIDv4(actorID); err != nil {
		return Token{}, err
	}
	maxLifetime, ok := MaxLifetime[kind]
	if !ok {
		return Token{}, guarderr.New(guarderr.KindIdentifierInvalid, "unknown confirmation kind")
	}
	lifetime := requestedLifetime
	if lifetime <= 0 || lifetime > maxLifetime {
		lifetime = maxLifetime
	}

	boundHash, err := canonicalize.Hash(actionPayload)
	if err != nil {
		return Token{}, guarderr.Wrap(guarderr.KindIdentifierInvalid, "failed to hash action payload", err)
	}

	r.mu.Lock()
	now := r.clock()
	r.mu.Unlock()

	token := Token{
		ConfirmationID: ids.NewV4(),
		BoundHash:      boundHash,
		IssuedAt:       now,
		ExpiresAt:      now.Add(lifetime),
		ActorID:        actorID,
		Kind:           kind,
	}

	r.mu.Lock()
	r.issued[token.ConfirmationID] = token
	r.mu.Unlock()

	return token, nil
}

// Consume attempts to spend token against actionPayload. Steps run in
// the order the spec requires: UUID validation, replay check, expiry
// check, binding recomputation, then atomic insertion into the consumed
// set. Exactly one concurrent caller for the same confirmation_id
// observes a nil error; every other caller — including ones that arrive
// before the winner's insertion completes — observes ReplayAttempt,
// because the whole sequence runs under one mutex.
func (r *Registry) Consume(token Token, actionPayload interface{}, now time.Time) error {
	if err := ids.ValidateUUIDv4(token.ConfirmationID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consumed[token.ConfirmationID] {
		return guarderr.New(guarderr.KindReplayAttempt, "confirmation already consumed")
	}
	if now.After(token.ExpiresAt) {
		return guarderr.New(guarderr.KindTokenExpired, "confirmation expired")
	}

	boundHash, err := canonicalize.Hash(actionPayload)
	if err != nil {
		return guarderr.Wrap(guarderr.KindIdentifierInvalid, "failed to hash action payload", err)
	}
	if boundHash != token.BoundHash {
		return guarderr.New(guarderr.KindTokenTampered, "action payload does not match bound hash")
	}

	r.consumed[token.ConfirmationID] = true
	return nil
}

// IsConsumed reports whether a confirmation_id has been spent. There is
// intentionally no corresponding Reset/Disable/Clear method.
func (r *Registry) IsConsumed(confirmationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumed[confirmationID]
}
