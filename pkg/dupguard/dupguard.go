// Package dupguard maintains the duplicate-submission index: a set of
// (decision_id, platform_tag, content_hash) triples seen across
// submissions. An exact match on all three blocks the submission
// outright; a partial match only warns. A block is overridden by
// Request.OverrideAuthorized, which this package takes as given; checking
// the human authorization behind it is left to the caller.
package dupguard

import (
	"sync"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// Key is one submission's duplicate-detection identity.
type Key struct {
	DecisionID  string
	PlatformTag string
	ContentHash string
}

// Verdict is the outcome of a duplicate check.
type Verdict string

const (
	VerdictClear    Verdict = "CLEAR"
	VerdictAdvisory Verdict = "ADVISORY"
	VerdictBlocked  Verdict = "BLOCKED"
)

// Request is one submission offered to Check.
type Request struct {
	Key Key
	// OverrideAuthorized must be true only when the caller has already
	// verified, via the confirmation's bound_hash, that a human
	// authorized overriding a block for this exact request. Guard never
	// derives this itself — it is the orchestrator's job to check the
	// bound hash before setting it.
	OverrideAuthorized bool
}

// Result reports what Check found.
type Result struct {
	Verdict   Verdict
	MatchedOn []string // field names that matched an existing entry
}

// Guard is the process-wide duplicate-submission index.
type Guard struct {
	mu      sync.Mutex
	entries []Key
}

// New constructs an empty Guard.
func New() *Guard {
	return &Guard{}
}

// Check compares req against every previously recorded Key. An exact
// match on all three fields is BLOCKED unless req.OverrideAuthorized is
// set, in which case it downgrades to ADVISORY; the key is then recorded
// like any other, with no mark that it was an override. A match on one or two
// fields (but not all three) is ADVISORY and never blocks. No match at
// all is CLEAR. On CLEAR or ADVISORY, req.Key is recorded so future
// checks see it.
func (g *Guard) Check(req Request) (Result, error) {
	if req.Key.DecisionID == "" || req.Key.PlatformTag == "" || req.Key.ContentHash == "" {
		return Result{}, guarderr.New(guarderr.KindIdentifierInvalid, "duplicate-guard key fields must be non-empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var bestMatch []string
	exact := false
	for _, existing := range g.entries {
		matched := matchedFields(existing, req.Key)
		if len(matched) == 3 {
			exact = true
			bestMatch = matched
			break
		}
		if len(matched) > len(bestMatch) {
			bestMatch = matched
		}
	}

	var result Result
	switch {
	case exact && !req.OverrideAuthorized:
		result = Result{Verdict: VerdictBlocked, MatchedOn: bestMatch}
		return result, guarderr.New(guarderr.KindDuplicateSubmission, "exact match on decision_id, platform_tag, and content_hash")
	case exact && req.OverrideAuthorized:
		result = Result{Verdict: VerdictAdvisory, MatchedOn: bestMatch}
	case len(bestMatch) > 0:
		result = Result{Verdict: VerdictAdvisory, MatchedOn: bestMatch}
	default:
		result = Result{Verdict: VerdictClear}
	}

	g.entries = append(g.entries, req.Key)
	return result, nil
}

func matchedFields(a, b Key) []string {
	var out []string
	if a.DecisionID == b.DecisionID {
		out = append(out, "decision_id")
	}
	if a.PlatformTag == b.PlatformTag {
		out = append(out, "platform_tag")
	}
	if a.ContentHash == b.ContentHash {
		out = append(out, "content_hash")
	}
	return out
}
