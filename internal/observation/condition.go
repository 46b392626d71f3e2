package observation

import (
	"time"

	"github.com/snarg/mtc-agent/internal/model"
)

// Level is a Condition's severity (spec.md §3).
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelFault
	LevelUnavailable
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelWarning:
		return "WARNING"
	case LevelFault:
		return "FAULT"
	case LevelUnavailable:
		return "UNAVAILABLE"
	}
	return "UNKNOWN"
}

// Condition is one node of the current-conditions chain for a single data
// item: forward-linked to the previously active condition (spec.md §3
// "Condition chain"). Chains are immutable and copy-on-write: every
// mutating operation below returns a new chain head rather than mutating
// existing nodes (SPEC_FULL.md §9, and spec.md §3 invariant (d)).
type Condition struct {
	DataItemID string
	Timestamp  time.Time
	Sequence   uint64

	Level          Level
	NativeCode     string
	Value          model.Value // message text
	Qualifier      string
	NativeSeverity string
	Prev           *Condition
}

// Flatten returns every node in the chain starting at c, most-recent first,
// matching the original agent's addToList helper
// (_examples/original_source/src/mtconnect/buffer/checkpoint.cpp): each
// chain node is presented as a distinct committed entry.
func (c *Condition) Flatten() []*Condition {
	var out []*Condition
	for n := c; n != nil; n = n.Prev {
		out = append(out, n)
	}
	return out
}

// Find walks the chain starting at c looking for an entry with the given
// native code, matching Condition::find in the original agent.
func (c *Condition) Find(code string) *Condition {
	for n := c; n != nil; n = n.Prev {
		if n.NativeCode == code {
			return n
		}
	}
	return nil
}

// sameAs reports whether two condition entries are indistinguishable for
// duplicate-suppression purposes: same code, level, value, qualifier, and
// native severity (spec.md §4.1.2 "Condition non-normal" rule).
func (c *Condition) sameAs(o *Condition) bool {
	return c.NativeCode == o.NativeCode &&
		c.Level == o.Level &&
		c.Value.Equal(o.Value) &&
		c.Qualifier == o.Qualifier &&
		c.NativeSeverity == o.NativeSeverity
}

// deepCopyAndRemove returns a new chain, rooted at chain, with the node
// equal to target (by pointer identity) excised; every remaining node is
// copied to preserve copy-on-write semantics. Returns nil if the chain is
// empty after removal. Mirrors Condition::deepCopyAndRemove in
// _examples/original_source/src/mtconnect/buffer/checkpoint.cpp.
func deepCopyAndRemove(chain, target *Condition) *Condition {
	if chain == nil {
		return nil
	}
	if chain == target {
		return deepCopyAndRemove(chain.Prev, target)
	}
	rest := deepCopyAndRemove(chain.Prev, target)
	cp := *chain
	cp.Prev = rest
	return &cp
}

// MergeCondition applies an incoming condition event against the existing
// condition chain, implementing
// Checkpoint::addObservation(ConditionPtr, ObservationPtr&& old) exactly
// (_examples/original_source/src/mtconnect/buffer/checkpoint.cpp):
//
//   - a non-normal, non-unavailable event arriving on a non-normal,
//     non-unavailable chain removes any entry with the same native code
//     (chain splice) and becomes the new head over what remains;
//   - a NORMAL with a non-empty code removes only the matching entry; if
//     that was the only entry, the chain collapses to a single
//     empty-code NORMAL;
//   - a NORMAL with an empty code, or any case not matched above, simply
//     becomes the new chain head.
func MergeCondition(event *Condition, existing *Condition) *Condition {
	if existing == nil {
		return event
	}

	nonNormalBoth := event.Level != LevelNormal && existing.Level != LevelNormal &&
		event.Level != LevelUnavailable && existing.Level != LevelUnavailable

	if nonNormalBoth {
		chain := existing
		if e := chain.Find(event.NativeCode); e != nil {
			chain = deepCopyAndRemove(chain, e)
		}
		cp := *event
		cp.Prev = chain
		return &cp
	}

	if event.Level == LevelNormal && event.NativeCode != "" {
		if e := existing.Find(event.NativeCode); e != nil {
			remainder := deepCopyAndRemove(existing, e)
			if remainder == nil {
				n := *event
				n.NativeCode = ""
				return &n
			}
			return remainder
		}
		// no matching active entry for this code: fall through, event
		// becomes the new head (mirrors the original's commented-out branch).
	}

	return event
}
