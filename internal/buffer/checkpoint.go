// Package buffer implements the CircularBuffer and Checkpoint types:
// a bounded, sequence-numbered ring of observations with periodic snapshots
// enabling O(1) reconstruction of state at any live sequence (spec.md §3,
// §4.5). Sizing, indexing, and merge semantics are grounded on
// _examples/original_source/src/mtconnect/buffer/circular_buffer.hpp and
// checkpoint.cpp.
package buffer

import "github.com/snarg/mtc-agent/internal/observation"

// Checkpoint is a mapping from data item id to that item's latest
// observation (condition chain included) as of a sequence (spec.md §3).
type Checkpoint struct {
	observations map[string]*observation.Observation
	filter       map[string]bool // nil means unfiltered
}

func NewCheckpoint() *Checkpoint {
	return &Checkpoint{observations: make(map[string]*observation.Observation)}
}

// AddObservation applies the merge rules from
// Checkpoint::addObservation(ObservationPtr) in the original agent: a
// condition event is spliced into the existing chain (observation.MergeCondition),
// a data-set event is merged entry-wise, and any other kind simply replaces
// the prior entry.
func (c *Checkpoint) AddObservation(obs *observation.Observation, discreteOrDataSet bool) {
	if obs.Orphan {
		return
	}
	if c.filter != nil && !c.filter[obs.DataItemID] {
		return
	}

	old, exists := c.observations[obs.DataItemID]
	if !exists {
		c.observations[obs.DataItemID] = obs
		return
	}

	switch obs.Kind {
	case observation.KindCondition:
		merged := obs.Clone()
		var existingChain *observation.Condition
		if old.Condition != nil {
			existingChain = old.Condition
		}
		merged.Condition = observation.MergeCondition(obs.Condition, existingChain)
		c.observations[obs.DataItemID] = merged
	case observation.KindDataSetEvent, observation.KindTableEvent:
		if obs.ResetTriggered || old.Value.IsEmpty() {
			c.observations[obs.DataItemID] = obs
			return
		}
		merged := obs.Clone()
		merged.Value.DataSet = old.Value.DataSet.Merge(obs.Value.DataSet)
		c.observations[obs.DataItemID] = merged
	default:
		c.observations[obs.DataItemID] = obs
	}
}

// Get returns the latest observation for a data item id.
func (c *Checkpoint) Get(dataItemID string) (*observation.Observation, bool) {
	o, ok := c.observations[dataItemID]
	return o, ok
}

// Copy clones the checkpoint, optionally restricting to filterSet (spec.md
// §3 Checkpoint "filtered copy"). A nil filterSet preserves the receiver's
// existing filter, if any — matching Checkpoint::Checkpoint(copy ctor).
func (c *Checkpoint) Copy(filterSet map[string]bool) *Checkpoint {
	filter := filterSet
	if filter == nil {
		filter = c.filter
	}
	out := &Checkpoint{observations: make(map[string]*observation.Observation), filter: filter}
	for id, obs := range c.observations {
		if filter == nil || filter[id] {
			out.observations[id] = obs
		}
	}
	return out
}

// Filter restricts this checkpoint in place to the given id set, dropping
// any existing entries outside it (Checkpoint::filter in the original).
func (c *Checkpoint) Filter(filterSet map[string]bool) {
	c.filter = filterSet
	if len(filterSet) == 0 {
		return
	}
	for id := range c.observations {
		if !filterSet[id] {
			delete(c.observations, id)
		}
	}
}

// Observations returns every non-orphan observation in the checkpoint,
// flattening condition chains into one entry per active condition node
// (Checkpoint::getObservations + addToList in the original).
func (c *Checkpoint) Observations(filterSet map[string]bool) []*observation.Observation {
	var out []*observation.Observation
	add := func(obs *observation.Observation) {
		if obs.Orphan {
			return
		}
		if obs.Kind == observation.KindCondition && obs.Condition != nil {
			for _, node := range obs.Condition.Flatten() {
				cp := obs.Clone()
				cp.Condition = node
				cp.Timestamp = node.Timestamp
				cp.Sequence = node.Sequence
				out = append(out, cp)
			}
			return
		}
		out = append(out, obs)
	}

	if filterSet != nil {
		for id := range filterSet {
			if obs, ok := c.observations[id]; ok {
				add(obs)
			}
		}
		return out
	}
	for _, obs := range c.observations {
		add(obs)
	}
	return out
}

// DataSetDifference applies dataSetDifference from the original agent:
// given a freshly-arrived data-set observation and the previously-delivered
// one, returns a copy carrying only the entries that changed, or nil if
// nothing changed (spec.md §4.5 Checkpoint "data-set differencing").
func DataSetDifference(incoming, old *observation.Observation) *observation.Observation {
	if incoming.Orphan {
		return nil
	}
	if len(incoming.Value.DataSet) == 0 || incoming.ResetTriggered {
		return incoming
	}
	diff := old.Value.DataSet.Diff(incoming.Value.DataSet)
	if len(diff) == 0 {
		return nil
	}
	cp := incoming.Clone()
	cp.Value.DataSet = diff
	return cp
}
