package pipeline

import (
	"strings"

	"github.com/snarg/mtc-agent/internal/buffer"
	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

// eachObservation rebuilds a KindObservationRaw/KindObservation entity after
// running fn over each observation it carries, dropping any observation fn
// returns nil for. Shared by the single-observation transforms below so
// each one stays a short, focused predicate/mapper.
func eachObservation(e *Entity, fn func(*observation.Observation) *observation.Observation) *Entity {
	out := e.Observations[:0]
	for _, o := range e.Observations {
		if r := fn(o); r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	e.Observations = out
	return e
}

// NewUpcaseValue upper-cases a string Event's value, matching the SHDR
// vocabulary convention that event values are reported case-insensitively
// but stored upper-case (spec.md §4.1 UpcaseValue row).
func NewUpcaseValue() *Node {
	return &Node{
		Name:  "UpcaseValue",
		Guard: OnKind(KindObservationRaw),
		Apply: func(e *Entity) *Entity {
			return eachObservation(e, func(o *observation.Observation) *observation.Observation {
				if o.Kind == observation.KindEvent && o.Value.Kind == model.KindString {
					o = o.Clone()
					o.Value = model.StringValue(strings.ToUpper(o.Value.Str))
				}
				return o
			})
		},
	}
}

// NewConvertSample applies the data item's unit converter to a Sample's
// double value (spec.md §4.1 ConvertSample row).
func NewConvertSample(agent Agent) *Node {
	return &Node{
		Name:  "ConvertSample",
		Guard: OnKind(KindObservationRaw),
		Apply: func(e *Entity) *Entity {
			return eachObservation(e, func(o *observation.Observation) *observation.Observation {
				if o.Kind != observation.KindSample || o.Value.Kind != model.KindDouble {
					return o
				}
				di, ok := agent.DataItem(o.DataItemID)
				if !ok || di.Converter == nil {
					return o
				}
				o = o.Clone()
				o.Value = model.DoubleValue(di.Converter.Convert(o.Value.Float))
				return o
			})
		},
	}
}

// NewDuplicateFilter drops an observation the current checkpoint already
// regards as a duplicate, implementing spec.md §4.1.2's rule table exactly.
func NewDuplicateFilter(agent Agent) *Node {
	return &Node{
		Name:  "DuplicateFilter",
		Guard: OnKind(KindObservationRaw),
		Apply: func(e *Entity) *Entity {
			return eachObservation(e, func(o *observation.Observation) *observation.Observation {
				if isDuplicate(agent, o) {
					return nil
				}
				return o
			})
		},
	}
}

func isDuplicate(agent Agent, o *observation.Observation) bool {
	prev, ok := agent.LatestObservation(o.DataItemID)
	if !ok {
		return false
	}

	di, hasDI := agent.DataItem(o.DataItemID)

	switch o.Kind {
	case observation.KindEvent:
		if hasDI && di.Discrete {
			return false // discrete events are never deduplicated
		}
	case observation.KindCondition:
		return conditionIsDuplicate(o.Condition, prev.Condition)
	case observation.KindDataSetEvent, observation.KindTableEvent:
		return buffer.DataSetDifference(o, prev) == nil
	}

	incomingUnavailable := o.Value.Kind == model.KindString && o.Value.Str == model.Unavailable
	prevUnavailable := prev.Value.Kind == model.KindString && prev.Value.Str == model.Unavailable
	if incomingUnavailable || prevUnavailable {
		return incomingUnavailable && prevUnavailable
	}

	return o.Value.Equal(prev.Value)
}

func conditionIsDuplicate(incoming, existing *observation.Condition) bool {
	if incoming == nil {
		return existing == nil
	}
	if incoming.Level == observation.LevelNormal && incoming.NativeCode == "" {
		return existing == nil || (existing.Level == observation.LevelNormal && existing.NativeCode == "" && existing.Prev == nil)
	}
	if existing == nil {
		return false
	}
	match := existing.Find(incoming.NativeCode)
	if match == nil {
		return false
	}
	return matchesCondition(incoming, match)
}

func matchesCondition(a, b *observation.Condition) bool {
	return a.NativeCode == b.NativeCode &&
		a.Level == b.Level &&
		a.Value.Equal(b.Value) &&
		a.Qualifier == b.Qualifier &&
		a.NativeSeverity == b.NativeSeverity
}

// NewDeltaFilter drops a Sample whose change from the current checkpoint
// value is below the data item's configured filter delta (spec.md §4.1
// DeltaFilter row).
func NewDeltaFilter(agent Agent) *Node {
	return &Node{
		Name:  "DeltaFilter",
		Guard: OnKind(KindObservationRaw),
		Apply: func(e *Entity) *Entity {
			return eachObservation(e, func(o *observation.Observation) *observation.Observation {
				if o.Kind != observation.KindSample {
					return o
				}
				di, ok := agent.DataItem(o.DataItemID)
				if !ok || di.FilterDelta <= 0 {
					return o
				}
				prev, ok := agent.LatestObservation(o.DataItemID)
				if !ok || prev.Value.Kind != model.KindDouble || o.Value.Kind != model.KindDouble {
					return o
				}
				delta := o.Value.Float - prev.Value.Float
				if delta < 0 {
					delta = -delta
				}
				if delta < di.FilterDelta {
					return nil
				}
				return o
			})
		},
	}
}
