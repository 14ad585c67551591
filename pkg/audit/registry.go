package audit

import (
	"sync"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// Registry owns one Log per subsystem. For returns the Log for any
// subsystem name it is given; AppendTo is the checked write path and
// rejects a caller whose declared subsystem differs from the target.
// A Log obtained through For can still be appended to directly.
type Registry struct {
	mu   sync.Mutex
	logs map[string]*Log
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{logs: make(map[string]*Log)}
}

// For returns the Log owned by subsystem, creating it on first use.
func (r *Registry) For(subsystem string) *Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[subsystem]; ok {
		return l
	}
	l := NewLog(subsystem)
	r.logs[subsystem] = l
	return l
}

// AppendTo appends seed to the named subsystem's log, but only if
// callerSubsystem matches subsystem — cross-subsystem writes are an
// architectural violation, not merely a bug, and are rejected as such
// regardless of caller intent.
func (r *Registry) AppendTo(callerSubsystem, subsystem string, seed Seed) (Entry, error) {
	if callerSubsystem != subsystem {
		return Entry{}, guarderr.New(guarderr.KindArchitecturalViolation,
			"subsystem \""+callerSubsystem+"\" attempted to write into \""+subsystem+"\"'s audit log")
	}
	return r.For(subsystem).Append(seed)
}

// Subsystems lists the names of every log created so far.
func (r *Registry) Subsystems() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for name := range r.logs {
		out = append(out, name)
	}
	return out
}
