// Package audit implements the append-only, hash-chained audit log.
// Every subsystem (execution, submission, reflection, export) owns its
// own Log. Registry.AppendTo rejects a write into another subsystem's
// log as an architectural violation; that check is made at run time.
// A Log computes each entry's chain linkage itself, so callers supply
// only the entry's content.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentryline/guardcore/pkg/canonicalize"
	"github.com/sentryline/guardcore/pkg/guarderr"
)

// Outcome is a closed enumeration of audit entry outcomes.
type Outcome string

const (
	OutcomeOK             Outcome = "OK"
	OutcomeDenied         Outcome = "DENIED"
	OutcomeError          Outcome = "ERROR"
	OutcomeConsumed       Outcome = "CONSUMED"
	OutcomeReplayAttempt  Outcome = "REPLAY_ATTEMPT"
	OutcomeTamperDetected Outcome = "TAMPER_DETECTED"
	OutcomeAdvisory       Outcome = "ADVISORY"
)

// Refs are the optional cross-references an entry may carry.
type Refs struct {
	FindingID      string `json:"finding_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	ConfirmationID string `json:"confirmation_id,omitempty"`
	ManifestID     string `json:"manifest_id,omitempty"`
}

// Seed is the caller-supplied content of a new entry, before the chain
// linkage and hash are computed.
type Seed struct {
	ActorID string
	Role    string
	Action  string
	Outcome Outcome
	Refs    Refs
}

// Entry is one immutable, hash-chained audit record.
type Entry struct {
	EntryID      string  `json:"entry_id"`
	TimestampUTC string  `json:"timestamp_utc"`
	ActorID      string  `json:"actor_id"`
	Role         string  `json:"role"`
	Action       string  `json:"action"`
	Outcome      Outcome `json:"outcome"`
	Refs         Refs    `json:"refs"`
	PreviousHash string  `json:"previous_hash"` // hex, or "" for genesis
	EntryHash    string  `json:"entry_hash"`     // hex
}

// canonicalFields is the total field ordering hashed to produce
// EntryHash. previous_hash is embedded so the chain linkage itself is
// covered by the hash, per spec §4.C.
type canonicalFields struct {
	EntryID      string  `json:"entry_id"`
	TimestampUTC string  `json:"timestamp_utc"`
	ActorID      string  `json:"actor_id"`
	Role         string  `json:"role"`
	Action       string  `json:"action"`
	Outcome      Outcome `json:"outcome"`
	Refs         Refs    `json:"refs"`
	PreviousHash string  `json:"previous_hash"`
}

func computeHash(e Entry) (string, error) {
	fields := canonicalFields{
		EntryID:      e.EntryID,
		TimestampUTC: e.TimestampUTC,
		ActorID:      e.ActorID,
		Role:         e.Role,
		Action:       e.Action,
		Outcome:      e.Outcome,
		Refs:         e.Refs,
		PreviousHash: e.PreviousHash,
	}
	return canonicalize.HashHex(fields)
}

// Log is a single subsystem's append-only hash-chained audit log.
type Log struct {
	mu      sync.Mutex
	subject string // subsystem name this log is scoped to, e.g. "execution"
	entries []Entry
	clock   func() time.Time
}

// NewLog constructs an empty log owned by the named subsystem/phase.
func NewLog(subsystem string) *Log {
	return &Log{subject: subsystem, clock: time.Now}
}

// WithClock overrides the clock, for deterministic tests.
func (l *Log) WithClock(clock func() time.Time) *Log {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
	return l
}

// Subsystem returns the name this log is scoped to.
func (l *Log) Subsystem() string { return l.subject }

// Append adds a new entry, computing its chain linkage and hash under a
// short critical section. It is the only mutator; no entry is ever
// mutated or removed after Append returns.
func (l *Log) Append(seed Seed) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prevHash string
	if n := len(l.entries); n > 0 {
		prevHash = l.entries[n-1].EntryHash
	}

	entry := Entry{
		EntryID:      uuid.Must(uuid.NewRandom()).String(),
		TimestampUTC: canonicalize.Time(l.clock()),
		ActorID:      seed.ActorID,
		Role:         seed.Role,
		Action:       seed.Action,
		Outcome:      seed.Outcome,
		Refs:         seed.Refs,
		PreviousHash: prevHash,
	}

	hash, err := computeHash(entry)
	if err != nil {
		return Entry{}, guarderr.Wrap(guarderr.KindAuditIntegrity, "failed to compute entry hash", err)
	}
	entry.EntryHash = hash

	l.entries = append(l.entries, entry)
	return entry, nil
}

// AppendAdvisory records a non-blocking advisory condition (near-duplicate
// warning, unexpected schema field, missing optional header). It goes
// through the exact same chain as Append — advisories are chained and
// verifiable, just tagged so a verifier can tell "warned" from "faulted".
func (l *Log) AppendAdvisory(actorID, role, action string, refs Refs) (Entry, error) {
	return l.Append(Seed{ActorID: actorID, Role: role, Action: action, Outcome: OutcomeAdvisory, Refs: refs})
}

// LoadFrom replaces the log's contents with a previously persisted
// entry sequence, for restart replay from durable storage (pkg/store).
// It does not re-verify the chain; call Verify afterward if that
// assurance is needed.
func (l *Log) LoadFrom(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]Entry(nil), entries...)
}

// Snapshot returns an ordered, immutable copy of every entry appended so
// far. Concurrent readers always see a consistent prefix.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Verify recomputes every hash end-to-end and confirms the chain
// linkage. It returns false on any mismatch.
func (l *Log) Verify() bool {
	ok, _, _ := l.VerifyWithReason()
	return ok
}

// VerifyWithReason is Verify plus the index and reason of the first
// inconsistency found, for diagnostics. index is -1 when ok is true.
func (l *Log) VerifyWithReason() (ok bool, index int, reason string) {
	snapshot := l.Snapshot()

	var prevHash string
	for i, e := range snapshot {
		if e.PreviousHash != prevHash {
			return false, i, "previous_hash does not match prior entry's entry_hash"
		}
		want, err := computeHash(e)
		if err != nil {
			return false, i, "failed to recompute entry hash: " + err.Error()
		}
		if want != e.EntryHash {
			return false, i, "entry_hash mismatch: entry was tampered with"
		}
		prevHash = e.EntryHash
	}
	return true, -1, ""
}
