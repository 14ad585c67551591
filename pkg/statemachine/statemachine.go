// Package statemachine implements closed-table state transitions: a
// fixed set of states, a fixed set of allowed (from, to) edges, and
// terminal states that absorb every further transition as an error.
// There is no generic "set state" escape hatch — every transition must
// name an edge present in the table.
package statemachine

import (
	"fmt"
	"sync"
	"time"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// Transition records one accepted move in a subject's history. The
// vector is append-only: nothing in this package ever removes or
// rewrites an entry once added.
type Transition struct {
	To     string    `json:"to_state"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Table is a closed transition table: edges[from] lists the states
// reachable directly from from. Any (from, to) pair not present is
// rejected. terminal lists states that accept no outgoing transition at
// all, including self-loops.
type Table struct {
	edges    map[string]map[string]bool
	terminal map[string]bool
}

// NewTable builds a Table from an edge list and a terminal-state set.
func NewTable(edges map[string][]string, terminal []string) *Table {
	t := &Table{edges: make(map[string]map[string]bool), terminal: make(map[string]bool)}
	for from, tos := range edges {
		set := make(map[string]bool, len(tos))
		for _, to := range tos {
			set[to] = true
		}
		t.edges[from] = set
	}
	for _, s := range terminal {
		t.terminal[s] = true
	}
	return t
}

// allows reports whether from -> to is a legal edge.
func (t *Table) allows(from, to string) bool {
	if t.terminal[from] {
		return false
	}
	return t.edges[from][to]
}

// IsTerminal reports whether s accepts no further transitions.
func (t *Table) IsTerminal(s string) bool {
	return t.terminal[s]
}

// Machine drives one subject's state through a Table, clock-stamped and
// serialized under a mutex so concurrent Transition calls for the same
// subject resolve to exactly one winner when only one edge exists.
type Machine struct {
	mu      sync.Mutex
	table   *Table
	state   string
	history []Transition
	clock   func() time.Time
}

// New constructs a Machine starting at initial, governed by table.
func New(table *Table, initial string) *Machine {
	return &Machine{table: table, state: initial, clock: time.Now}
}

// WithClock overrides the clock, for deterministic tests.
func (m *Machine) WithClock(clock func() time.Time) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
	return m
}

// State returns the current state.
func (m *Machine) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of the accepted transition vector.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// CanTransition reports whether the current state may move to "to",
// without making the move. Callers that must validate a proposed
// transition before committing to anything irreversible (consuming a
// confirmation, opening a network connection) dry-run it through here
// first.
func (m *Machine) CanTransition(to string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.allows(m.state, to)
}

// Transition attempts to move to "to" with an optional reason. Any
// transition not present in the table — including a self-loop or a
// backwards move — returns InvalidTransition and leaves state and
// history unchanged. A terminal state absorbs every further attempt the
// same way.
func (m *Machine) Transition(to, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.table.allows(m.state, to) {
		return guarderr.New(guarderr.KindInvalidTransition,
			fmt.Sprintf("%s -> %s is not a permitted transition", m.state, to))
	}

	m.state = to
	m.history = append(m.history, Transition{To: to, At: m.clock(), Reason: reason})
	return nil
}
