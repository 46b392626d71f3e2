// Package model implements the MTConnect Entity/Value data model: a
// polymorphic property carrier validated by a Factory of Requirements, plus
// the DataItem/Device/Component tree and the Asset record.
package model

import (
	"reflect"
	"time"
)

// Kind tags the variant a Value currently holds.
type Kind int

const (
	KindEmpty Kind = iota
	KindNull
	KindString
	KindInt64
	KindDouble
	KindBool
	KindVector // []float64
	KindDataSet
	KindTimestamp
	KindEntity     // nested *Entity
	KindEntityList // []*Entity, ordered
)

// DataSetEntry is one key/value cell of a DataSetEvent or, nested, of a
// TableEvent. Removed marks a tombstone entry used by resetTriggered-aware
// merges (spec.md §3 DataSetEvent, §4.5 Checkpoint.addObservation).
type DataSetEntry struct {
	Key     string
	Value   any // string, float64, int64, bool, or DataSet for table cells
	Removed bool
}

// DataSet is an unordered map of key to scalar (or, for TableEvent, of key
// to a nested DataSet), represented as a slice to match the entry-wise
// diff/merge semantics in spec.md §4.5 and §8 property 5.
type DataSet []DataSetEntry

// Find returns the entry for key, or ok=false.
func (d DataSet) Find(key string) (DataSetEntry, bool) {
	for _, e := range d {
		if e.Key == key {
			return e, true
		}
	}
	return DataSetEntry{}, false
}

// Same reports whether two entries share a key and an equal value, used by
// Checkpoint's dataSetDifference (spec.md §4.5) to drop unchanged cells.
func (e DataSetEntry) Same(o DataSetEntry) bool {
	return e.Key == o.Key && reflect.DeepEqual(e.Value, o.Value)
}

// Merge applies incoming entry-wise over base, erasing keys present in
// incoming then re-inserting non-removed entries — the exact algorithm in
// the original agent's Checkpoint::addObservation(DataSetEventPtr, ...)
// (_examples/original_source/src/mtconnect/buffer/checkpoint.cpp).
func (base DataSet) Merge(incoming DataSet) DataSet {
	out := make(DataSet, 0, len(base)+len(incoming))
	skip := make(map[string]bool, len(incoming))
	for _, e := range incoming {
		skip[e.Key] = true
	}
	for _, e := range base {
		if !skip[e.Key] {
			out = append(out, e)
		}
	}
	for _, e := range incoming {
		if !e.Removed {
			out = append(out, e)
		}
	}
	return out
}

// Diff returns the subset of incoming whose entries are not already present
// with an identical value in base. Merging the result into base yields
// incoming only when incoming carries every key of base: a key present in
// base but absent from incoming produces no removal entry, so it survives
// the merge.
func (base DataSet) Diff(incoming DataSet) DataSet {
	out := make(DataSet, 0, len(incoming))
	for _, e := range incoming {
		if old, ok := base.Find(e.Key); !ok || !old.Same(e) {
			out = append(out, e)
		}
	}
	return out
}

// Value is a tagged-union property value: empty, nested entity, ordered
// list of entities, string, 64-bit integer, double, boolean, vector of
// doubles, data-set, timestamp, or null (spec.md §3 Entity).
type Value struct {
	Kind Kind

	Str       string
	Int       int64
	Float     float64
	Bool      bool
	Vector    []float64
	DataSet   DataSet
	Time      time.Time
	Entity    *Entity
	EntityList []*Entity
}

func Empty() Value                      { return Value{Kind: KindEmpty} }
func Null() Value                       { return Value{Kind: KindNull} }
func StringValue(s string) Value        { return Value{Kind: KindString, Str: s} }
func Int64Value(i int64) Value          { return Value{Kind: KindInt64, Int: i} }
func DoubleValue(f float64) Value       { return Value{Kind: KindDouble, Float: f} }
func BoolValue(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func VectorValue(v []float64) Value     { return Value{Kind: KindVector, Vector: v} }
func DataSetValue(d DataSet) Value      { return Value{Kind: KindDataSet, DataSet: d} }
func TimestampValue(t time.Time) Value  { return Value{Kind: KindTimestamp, Time: t} }
func EntityValue(e *Entity) Value       { return Value{Kind: KindEntity, Entity: e} }
func EntityListValue(l []*Entity) Value { return Value{Kind: KindEntityList, EntityList: l} }

func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// Equal performs structural equality, matching spec.md §3's "Equality is
// structural" invariant.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindEmpty, KindNull:
		return true
	case KindString:
		return v.Str == o.Str
	case KindInt64:
		return v.Int == o.Int
	case KindDouble:
		return v.Float == o.Float
	case KindBool:
		return v.Bool == o.Bool
	case KindTimestamp:
		return v.Time.Equal(o.Time)
	case KindVector:
		if len(v.Vector) != len(o.Vector) {
			return false
		}
		for i := range v.Vector {
			if v.Vector[i] != o.Vector[i] {
				return false
			}
		}
		return true
	case KindDataSet:
		if len(v.DataSet) != len(o.DataSet) {
			return false
		}
		for _, e := range v.DataSet {
			oe, ok := o.DataSet.Find(e.Key)
			if !ok || !oe.Same(e) {
				return false
			}
		}
		return true
	case KindEntity:
		if v.Entity == nil || o.Entity == nil {
			return v.Entity == o.Entity
		}
		return v.Entity.Equal(o.Entity)
	case KindEntityList:
		if len(v.EntityList) != len(o.EntityList) {
			return false
		}
		for i := range v.EntityList {
			if !v.EntityList[i].Equal(o.EntityList[i]) {
				return false
			}
		}
		return true
	}
	return false
}
