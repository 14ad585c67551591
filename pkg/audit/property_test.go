//go:build property
// +build property

package audit

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// P4 (Chain integrity): for any audit log, mutating any byte of any
// entry's action field causes Verify to return false.
func TestProperty_TamperAlwaysDetected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("tampering any entry breaks verification", prop.ForAll(
		func(actions []string, tamperIndex int) bool {
			if len(actions) == 0 {
				return true
			}
			l := NewLog("execution")
			for _, a := range actions {
				if _, err := l.Append(Seed{ActorID: "a", Role: "OPERATOR", Action: a, Outcome: OutcomeOK}); err != nil {
					return false
				}
			}
			idx := tamperIndex % len(actions)
			if idx < 0 {
				idx = -idx
			}

			l.mu.Lock()
			l.entries[idx].Action = l.entries[idx].Action + "-tampered"
			l.mu.Unlock()

			return !l.Verify()
		},
		gen.SliceOfN(10, gen.AlphaString()),
		gen.Int(),
	))

	properties.TestingRun(t)
}

// P5 (Append-only): snapshot is always a prefix-extension of any earlier
// snapshot taken from the same log.
func TestProperty_SnapshotIsPrefixExtension(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("snapshots only grow by appending", prop.ForAll(
		func(firstBatch, secondBatch []string) bool {
			l := NewLog("execution")
			for _, a := range firstBatch {
				if _, err := l.Append(Seed{ActorID: "a", Role: "OPERATOR", Action: a, Outcome: OutcomeOK}); err != nil {
					return false
				}
			}
			s1 := l.Snapshot()

			for _, a := range secondBatch {
				if _, err := l.Append(Seed{ActorID: "a", Role: "OPERATOR", Action: a, Outcome: OutcomeOK}); err != nil {
					return false
				}
			}
			s2 := l.Snapshot()

			if len(s2) < len(s1) {
				return false
			}
			for i := range s1 {
				if s1[i] != s2[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.AlphaString()),
		gen.SliceOfN(5, gen.AlphaString()),
	))

	properties.TestingRun(t)
}
