// Package observation implements the MTConnect Observation variants and the
// Condition chain, matching the teacher's preference for explicit typed
// variant fields over interface-hierarchy polymorphism (e.g.
// database.RawMessageRow, database.TrunkingMessageRow in the teacher
// repo) rather than runtime type-switching on an interface.
package observation

import (
	"time"

	"github.com/snarg/mtc-agent/internal/model"
)

// Kind tags which Observation variant a value represents (spec.md §3).
type Kind int

const (
	KindSample Kind = iota
	KindThreeSpaceSample
	KindTimeseries
	KindEvent
	KindDataSetEvent
	KindTableEvent
	KindCondition
	KindAssetEvent
	KindMessage
	KindAlarm
)

func (k Kind) String() string {
	switch k {
	case KindSample:
		return "Sample"
	case KindThreeSpaceSample:
		return "ThreeSpaceSample"
	case KindTimeseries:
		return "Timeseries"
	case KindEvent:
		return "Event"
	case KindDataSetEvent:
		return "DataSetEvent"
	case KindTableEvent:
		return "TableEvent"
	case KindCondition:
		return "Condition"
	case KindAssetEvent:
		return "AssetEvent"
	case KindMessage:
		return "Message"
	case KindAlarm:
		return "Alarm"
	}
	return "Unknown"
}

// Observation is an immutable record bound to exactly one data item,
// carrying a timestamp, an assigned sequence number, and a typed value
// (spec.md §3). It is orphan iff its data item reference no longer
// resolves (e.g. after a device-model update removed the data item).
type Observation struct {
	DataItemID string
	Kind       Kind
	Timestamp  time.Time
	Sequence   uint64
	Orphan     bool

	// Value carries the payload for Sample, Event, Message, Alarm
	// (KindString/KindDouble/KindInt64), ThreeSpaceSample/Timeseries
	// (KindVector), and DataSetEvent/TableEvent (KindDataSet).
	Value model.Value

	// Sample-only fields.
	Duration  *float64
	Statistic string

	// Timeseries-only.
	SampleCount int

	// AssetEvent-only.
	AssetID string

	// DataSetEvent/TableEvent-only: when true, the merge rules in
	// buffer.Checkpoint replace the set outright instead of merging
	// entry-wise (spec.md §4.5 Checkpoint.addObservation, grounded on
	// checkpoint.cpp's resetTriggered check).
	ResetTriggered bool

	// Condition-only; nil for every other Kind.
	Condition *Condition
}

// New constructs a non-condition observation. Sequence is assigned later by
// the circular buffer (spec.md §4.5 addToBuffer).
func New(dataItemID string, kind Kind, ts time.Time, v model.Value) *Observation {
	return &Observation{DataItemID: dataItemID, Kind: kind, Timestamp: ts, Value: v}
}

// Clone returns a shallow copy; the copy points at the same Condition chain
// (condition chains are immutable, so sharing is safe; see Condition's
// copy-on-write semantics in condition.go).
func (o *Observation) Clone() *Observation {
	c := *o
	return &c
}

// IsDiscrete reports whether this kind is exempt from DuplicateFilter
// suppression (spec.md §4.1.2 "Discrete events: always pass").
func (o *Observation) IsDiscrete(discreteDataItem bool) bool {
	return o.Kind == KindEvent && discreteDataItem
}
