package query

import (
	"slices"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// JoinEntry is one join applied to a list, recorded so it can be reapplied
// after the FROM clause is rewritten.
type JoinEntry struct {
	Kind      types.JoinKind
	Target    string
	Condition string
	Columns   []string
	Schema    string
}

// Apply applies the entry to s.
func (e JoinEntry) Apply(s *Select) error {
	return s.Join(e.Kind, e.Target, e.Condition, e.Columns, e.Schema)
}

// Ledger is the append-only join history of a list. Entries are never
// removed or reordered. Resetting the FROM clause moves the base past the
// current entries so they are no longer replayed.
type Ledger struct {
	entries []JoinEntry
	base    int
}

// Record appends e.
func (l *Ledger) Record(e JoinEntry) {
	e.Columns = slices.Clone(e.Columns)
	l.entries = append(l.entries, e)
}

// Seal excludes every entry recorded so far from future replays.
func (l *Ledger) Seal() {
	l.base = len(l.entries)
}

// Active returns the entries that Replay applies, in insertion order.
func (l *Ledger) Active() []JoinEntry {
	return slices.Clone(l.entries[l.base:])
}

// Len returns the number of entries ever recorded.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Replay applies the active entries to s in insertion order and stops at
// the first rejected entry.
func (l *Ledger) Replay(s *Select) error {
	for _, e := range l.entries[l.base:] {
		if err := e.Apply(s); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a copy that shares no backing storage with l.
func (l Ledger) Clone() Ledger {
	entries := make([]JoinEntry, len(l.entries))
	for i, e := range l.entries {
		e.Columns = slices.Clone(e.Columns)
		entries[i] = e
	}
	return Ledger{entries: entries, base: l.base}
}
